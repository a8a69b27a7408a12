package methodscan

import "encoding/json"

const contentType = "application/json; charset=utf-8"

// response is the envelope of a successful invocation: {"result": ...}.
// Methods without a result produce {"result": null}.
type response struct {
	Result any `json:"result"`
}

// errorResponse is the envelope of a failed invocation: {"error": {...}}.
type errorResponse struct {
	Error *Error `json:"error"`
}

func encodeResponse(w jsonWriter, result any) error {
	return encodeIndented(w, response{Result: result})
}

func encodeErrorResponse(w jsonWriter, err *Error) error {
	return encodeIndented(w, errorResponse{Error: err})
}

func encodeIndented(w jsonWriter, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// jsonWriter is satisfied by http.ResponseWriter and allows testing.
type jsonWriter interface {
	Write([]byte) (int, error)
}
