package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/kbukum/netmanager/errors"
	"github.com/kbukum/netmanager/logger"
	"github.com/kbukum/netmanager/observability"
	"github.com/kbukum/netmanager/validation"
	"github.com/kbukum/netmanager/version"
)

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger. Defaults to logger.Get("httpclient").
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records request metrics for every call.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTransport replaces the underlying *http.Client.
// The configured timeout still applies through the request context.
func WithTransport(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.doer = d
		}
	}
}

// Client is an immutable JSON HTTP client. It is safe for concurrent use.
type Client struct {
	config    Config
	doer      Doer
	log       *logger.Logger
	metrics   *observability.Metrics
	userAgent string
}

// New creates a new HTTP client with the given configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.clone()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy := cfg.Proxy.proxyFunc(); proxy != nil {
		transport.Proxy = proxy
	}

	c := &Client{
		doer: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		config:    cfg,
		log:       logger.Get("httpclient"),
		userAgent: version.UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithFields(logger.Fields("client", cfg.Name))
	return c, nil
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	return c.config.clone()
}

// preparedCall is a fully built request waiting for the transport.
type preparedCall struct {
	request  *Request
	httpReq  *http.Request
	spanName string
	closer   io.Closer
}

func (p *preparedCall) close() {
	if p.closer != nil {
		_ = p.closer.Close()
	}
}

// Do sends a JSON request and waits for its outcome.
// Invalid input is reported as a precondition error without any I/O.
func (c *Client) Do(ctx context.Context, spec RequestSpec) Outcome {
	call, err := c.prepareRequest(spec)
	if err != nil {
		return Outcome{Err: err}
	}
	return c.execute(ctx, call)
}

// Send sends a JSON request in the background. The channel yields exactly
// one Outcome and is then closed. Invalid input is returned immediately.
func (c *Client) Send(ctx context.Context, spec RequestSpec) (<-chan Outcome, error) {
	call, err := c.prepareRequest(spec)
	if err != nil {
		return nil, err
	}
	return c.async(ctx, call), nil
}

// SendRequest sends a JSON request in the background and invokes exactly one
// of the callbacks on the request goroutine. Invalid input, nil callbacks
// included, is returned immediately and neither callback runs.
func (c *Client) SendRequest(ctx context.Context, spec RequestSpec, onSuccess SuccessFunc, onFailure FailureFunc) error {
	if err := checkCallbacks(onSuccess, onFailure); err != nil {
		return err
	}
	call, err := c.prepareRequest(spec)
	if err != nil {
		return err
	}
	go func() {
		c.execute(ctx, call).Dispatch(onSuccess, onFailure)
	}()
	return nil
}

// DoUpload uploads a file and waits for its outcome.
func (c *Client) DoUpload(ctx context.Context, spec UploadSpec) Outcome {
	call, err := c.prepareUpload(spec)
	if err != nil {
		return Outcome{Err: err}
	}
	return c.execute(ctx, call)
}

// SendUpload uploads a file in the background. The channel yields exactly
// one Outcome and is then closed.
func (c *Client) SendUpload(ctx context.Context, spec UploadSpec) (<-chan Outcome, error) {
	call, err := c.prepareUpload(spec)
	if err != nil {
		return nil, err
	}
	return c.async(ctx, call), nil
}

// SendUploadRequest uploads a file in the background and invokes exactly one
// of the callbacks on the request goroutine.
func (c *Client) SendUploadRequest(ctx context.Context, spec UploadSpec, onSuccess SuccessFunc, onFailure FailureFunc) error {
	if err := checkCallbacks(onSuccess, onFailure); err != nil {
		return err
	}
	call, err := c.prepareUpload(spec)
	if err != nil {
		return err
	}
	go func() {
		c.execute(ctx, call).Dispatch(onSuccess, onFailure)
	}()
	return nil
}

func checkCallbacks(onSuccess SuccessFunc, onFailure FailureFunc) error {
	v := validation.New().
		Custom(onSuccess != nil, "on_success", "is required").
		Custom(onFailure != nil, "on_failure", "is required")
	if appErr := v.Validate(); appErr != nil {
		return newPreconditionError(appErr)
	}
	return nil
}

func (c *Client) prepareRequest(spec RequestSpec) (*preparedCall, error) {
	if err := validation.Validate(spec); err != nil {
		return nil, preconditionFrom(err)
	}

	method := spec.Method
	if method == "" {
		method = MethodGet
	}

	u, err := c.resolveURL(spec.URL, spec.Query)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if spec.Body != nil {
		payload, err = json.Marshal(spec.Body)
		if err != nil {
			return nil, newPreconditionError(apperrors.InvalidInput("body", "cannot be encoded as JSON").WithCause(err))
		}
	}

	header := c.buildHeader(spec.Headers)
	if payload != nil && headerValue(header, "Content-Type") == "" {
		setHeader(header, "Content-Type", "application/json")
	}
	id := c.requestID(header)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequest(string(method), u.String(), body)
	if err != nil {
		return nil, newPreconditionError(apperrors.InvalidInput("url", err.Error()).WithCause(err))
	}
	httpReq.Header = header

	return &preparedCall{
		request: &Request{
			ID:     id,
			Method: method,
			URL:    u,
			Header: header,
			Body:   payload,
		},
		httpReq:  httpReq,
		spanName: observability.SpanHTTPRequest,
	}, nil
}

func (c *Client) prepareUpload(spec UploadSpec) (*preparedCall, error) {
	v := validation.New().
		Merge("upload", validation.Validate(spec)).
		ExactlyOne("payload", map[string]bool{
			"data":      spec.Data != nil,
			"file_path": spec.FilePath != "",
		})
	if appErr := v.Validate(); appErr != nil {
		return nil, newPreconditionError(appErr)
	}

	u, err := c.resolveURL(spec.URL, nil)
	if err != nil {
		return nil, err
	}

	payload, size, closer, err := openPayload(spec)
	if err != nil {
		return nil, err
	}
	upload, err := encodeUpload(c.config.UploadMode, spec, payload, size)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}
	upload.closer = closer

	header := c.buildHeader(spec.Headers)
	switch c.config.UploadMode {
	case UploadMultipart:
		setHeader(header, "Content-Type", upload.contentType)
	case UploadRaw:
		if headerValue(header, "Content-Type") == "" {
			setHeader(header, "Content-Type", upload.contentType)
		}
		setHeader(header, "Content-Disposition", upload.disposition)
	}
	id := c.requestID(header)

	httpReq, err := http.NewRequest(string(MethodPost), u.String(), upload.reader)
	if err != nil {
		_ = upload.Close()
		return nil, newPreconditionError(apperrors.InvalidInput("url", err.Error()).WithCause(err))
	}
	httpReq.Header = header
	httpReq.ContentLength = upload.length

	return &preparedCall{
		request: &Request{
			ID:     id,
			Method: MethodPost,
			URL:    u,
			Header: header,
		},
		httpReq:  httpReq,
		spanName: observability.SpanHTTPUpload,
		closer:   upload,
	}, nil
}

func (c *Client) async(ctx context.Context, call *preparedCall) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		ch <- c.execute(ctx, call)
	}()
	return ch
}

// execute runs a prepared call through the transport and resolves it.
func (c *Client) execute(ctx context.Context, call *preparedCall) Outcome {
	defer call.close()

	req := call.request
	ctx = logger.ContextWithRequestID(ctx, req.ID)
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	log := c.log.WithContext(ctx).WithFields(logger.Fields(
		logger.FieldMethod, string(req.Method),
		logger.FieldURL, req.URL.Redacted(),
	))

	oc := observability.NewOperationContext(c.config.Name, string(req.Method), req.ID, c.metrics)
	ctx, span := oc.StartSpanForOperation(ctx, call.spanName,
		attribute.String(observability.AttrHTTPMethod, string(req.Method)),
		attribute.String(observability.AttrURL, req.URL.Redacted()),
	)

	httpReq := call.httpReq.WithContext(ctx)
	observability.InjectHeaders(ctx, httpReq.Header)

	log.Debug("sending request")

	resp, err := c.doer.Do(httpReq)
	var response *Response
	if resp != nil {
		response, err = readResponse(resp, err)
	}

	out := resolve(req, response, err)

	status := "error"
	errType := ""
	if response != nil {
		status = strconv.Itoa(response.StatusCode)
		span.SetAttributes(attribute.Int(observability.AttrHTTPStatusCode, response.StatusCode))
	}
	var clientErr *Error
	if errors.As(out.Err, &clientErr) {
		errType = clientErr.Code.String()
		status = errType
	}
	oc.EndOperation(ctx, span, status, out.Err, errType)

	fields := logger.DurationFields(call.spanName, oc.Duration())
	if response != nil {
		fields[logger.FieldStatus] = response.StatusCode
	}
	if out.Err != nil {
		log.WithError(out.Err).Warn("request failed", fields)
	} else {
		log.Debug("request completed", fields)
	}
	return out
}

// readResponse drains and closes the body. A read failure is returned
// alongside the partial response.
func readResponse(resp *http.Response, transportErr error) (*Response, error) {
	response := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}
	if resp.Body == nil {
		return response, transportErr
	}
	defer resp.Body.Close()
	if transportErr != nil {
		return response, transportErr
	}
	body, err := io.ReadAll(resp.Body)
	response.Body = body
	return response, err
}
