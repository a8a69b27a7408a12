package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/labstack/echo/v4"

	"github.com/broady/methodscan"
	echoadapter "github.com/broady/methodscan/adapters/echo"
	fiberadapter "github.com/broady/methodscan/adapters/fiber"
	ginadapter "github.com/broady/methodscan/adapters/gin"
	"github.com/broady/methodscan/config"
	"github.com/broady/methodscan/examples/orders"
	"github.com/broady/methodscan/middleware"
	"github.com/broady/methodscan/openapi"
)

type Globals struct {
	Config string `help:"Path to a YAML or TOML config file." short:"c" type:"path" env:"METHODSCAN_CONFIG"`
}

type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" help:"Serve the demo shop over HTTP."`
	Doc     DocCmd     `cmd:"" help:"Print the OpenAPI document of the demo shop."`
	List    ListCmd    `cmd:"" help:"List exposed endpoints."`
	Invoke  InvokeCmd  `cmd:"" help:"Invoke an endpoint with a JSON body."`
	Version VersionCmd `cmd:"" help:"Print version information."`
}

type env struct {
	cfg    *config.Config
	logger *slog.Logger
	app    *methodscan.App
}

func (g *Globals) load(logOut io.Writer) (*env, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger(logOut)
	app := cfg.NewApp(logger).WithUnaryInterceptor(middleware.LoggingInterceptor(logger))
	if err := orders.Register(app); err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, app: app}, nil
}

func (rt *env) document() (*openapi.Generator, error) {
	g := openapi.New(openapi.Info{Title: rt.cfg.Title, Version: rt.cfg.Version}, rt.cfg.DocsGroup)
	if _, err := g.Augment(rt.app); err != nil {
		return nil, err
	}
	return g, nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run(out io.Writer) error {
	fmt.Fprintln(out, Version())
	return nil
}

type ServeCmd struct {
	Listen    string `help:"Listen address, overriding the config."`
	Framework string `help:"HTTP stack to mount the handler on." enum:"std,gin,echo,fiber" default:"std"`
}

func (c *ServeCmd) Run(g *Globals) error {
	rt, err := g.load(os.Stderr)
	if err != nil {
		return err
	}
	docs, err := rt.document()
	if err != nil {
		return err
	}
	doc := openapi.Handler(docs.Document(rt.cfg.DocsGroup))
	addr := rt.cfg.Listen
	if c.Listen != "" {
		addr = c.Listen
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Framework == "fiber" {
		f := fiber.New(fiber.Config{DisableStartupMessage: true})
		fiberadapter.Mount(f, rt.app)
		f.Get("/openapi.json", adaptor.HTTPHandler(doc))
		f.Get("/openapi.yaml", adaptor.HTTPHandler(doc))
		go shutdownOnDone(ctx, rt.logger, f.ShutdownWithContext)
		rt.logger.Info("serving", slog.String("addr", addr), slog.String("framework", c.Framework))
		return f.Listen(addr)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           c.handler(rt.app, doc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go shutdownOnDone(ctx, rt.logger, srv.Shutdown)
	rt.logger.Info("serving",
		slog.String("addr", addr),
		slog.String("framework", c.Framework),
		slog.String("prefix", rt.app.PathPrefix()),
	)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdownOnDone waits for ctx to end, then stops a server within five
// seconds.
func shutdownOnDone(ctx context.Context, logger *slog.Logger, shutdown func(context.Context) error) {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
	}
}

func (c *ServeCmd) handler(app *methodscan.App, doc http.Handler) http.Handler {
	switch c.Framework {
	case "gin":
		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		r.Use(gin.Recovery())
		ginadapter.Mount(r, app)
		r.GET("/openapi.json", gin.WrapH(doc))
		r.GET("/openapi.yaml", gin.WrapH(doc))
		return r
	case "echo":
		e := echo.New()
		e.HideBanner = true
		echoadapter.Mount(e, app)
		e.GET("/openapi.json", echo.WrapHandler(doc))
		e.GET("/openapi.yaml", echo.WrapHandler(doc))
		return e
	default:
		mux := http.NewServeMux()
		mux.Handle(app.PathPrefix(), app.Handler())
		mux.Handle("GET /openapi.json", doc)
		mux.Handle("GET /openapi.yaml", doc)
		return mux
	}
}

type DocCmd struct {
	Format string `help:"Output format." enum:"json,yaml" default:"json" short:"f"`
	Group  string `help:"Document group to print, overriding docs_group."`
	Out    string `help:"Write to this file instead of stdout." short:"o" type:"path"`
}

func (c *DocCmd) Run(g *Globals, out io.Writer) error {
	rt, err := g.load(io.Discard)
	if err != nil {
		return err
	}
	if c.Group != "" {
		rt.cfg.DocsGroup = c.Group
	}
	docs, err := rt.document()
	if err != nil {
		return err
	}
	b, err := openapi.Marshal(docs.Document(rt.cfg.DocsGroup), openapi.Format(c.Format))
	if err != nil {
		return err
	}
	if c.Out != "" {
		return os.WriteFile(c.Out, b, 0o644)
	}
	_, err = out.Write(b)
	return err
}

type ListCmd struct{}

func (c *ListCmd) Run(g *Globals, out io.Writer) error {
	rt, err := g.load(io.Discard)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTAG\tPARAMETERS\tRETURNS")
	for _, e := range rt.app.Entries() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Tag, strings.ReplaceAll(e.ParameterDoc, "\n", ", "), e.ReturnDoc)
	}
	return tw.Flush()
}

type InvokeCmd struct {
	Name string `arg:"" help:"Exposed name, such as orders.list."`
	Body string `arg:"" optional:"" help:"JSON object with the arguments."`
}

func (c *InvokeCmd) Run(g *Globals, out io.Writer) error {
	rt, err := g.load(io.Discard)
	if err != nil {
		return err
	}
	res, err := rt.app.Invoke(context.Background(), c.Name, []byte(c.Body))
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err != nil {
		svcErr := methodscan.DefaultErrorTransformer(err)
		enc.Encode(map[string]any{"error": svcErr})
		return svcErr
	}
	return enc.Encode(map[string]any{"result": res})
}

func newParser(cli *CLI, out io.Writer, exit func(int)) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("methodscan"),
		kong.Description("Expose Go methods as JSON endpoints and document them."),
		kong.UsageOnError(),
		kong.Writers(out, os.Stderr),
		kong.Exit(exit),
		kong.BindTo(out, (*io.Writer)(nil)),
	)
}

func main() {
	cli := &CLI{}
	parser, err := newParser(cli, os.Stdout, os.Exit)
	if err != nil {
		panic(err)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	err = ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
