package httpclient

import (
	"net/http"
	"net/url"
)

// Method is the HTTP method of a request. Only GET and POST are supported.
type Method string

const (
	MethodGet  Method = http.MethodGet
	MethodPost Method = http.MethodPost
)

// RequestSpec describes a JSON request.
type RequestSpec struct {
	// Method defaults to GET when empty.
	Method Method `json:"method" validate:"omitempty,oneof=GET POST"`
	// URL is appended to the client's BaseURL.
	URL string `json:"url" validate:"required"`
	// Headers are request-specific headers (merged over client defaults).
	Headers map[string]string `json:"headers,omitempty"`
	// Query are URL query parameters, added for every method.
	Query map[string]string `json:"query,omitempty"`
	// Body is JSON-encoded when non-nil. Any JSON value is accepted.
	Body any `json:"body,omitempty" validate:"-"`
}

// UploadSpec describes a file upload. It is always sent as POST.
// Exactly one of Data and FilePath must be set.
type UploadSpec struct {
	// URL is appended to the client's BaseURL.
	URL string `json:"url" validate:"required"`
	// Headers are request-specific headers (merged over client defaults).
	Headers map[string]string `json:"headers,omitempty"`
	// FieldName is the form field that carries the file.
	FieldName string `json:"field_name" validate:"required"`
	// FileName is the file name reported to the server.
	FileName string `json:"file_name" validate:"required"`
	// MimeType is the payload content type, e.g. "image/png".
	MimeType string `json:"mime_type" validate:"required,mimetype"`
	// Data is an in-memory payload.
	Data []byte `json:"-"`
	// FilePath names a local file to stream as the payload.
	FilePath string `json:"file_path,omitempty"`
}

// Request is the resolved request handed back with every outcome.
type Request struct {
	// ID is unique per call.
	ID string
	// Method is the HTTP method sent.
	Method Method
	// URL is the fully resolved URL, query included.
	URL *url.URL
	// Header holds the headers sent.
	Header http.Header
	// Body is the encoded JSON payload. Nil for uploads and bodiless requests.
	Body []byte
}

// Response is the raw HTTP response.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Header holds the response headers.
	Header http.Header
	// Body is the full response body.
	Body []byte
}
