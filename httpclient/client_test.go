package httpclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/kbukum/netmanager/errors"
	"github.com/kbukum/netmanager/internal/upstream"
	"github.com/kbukum/netmanager/observability"
)

func newUpstreamClient(t *testing.T, cfg Config, opts ...Option) (*Client, *upstream.Server) {
	t.Helper()
	srv := upstream.New()
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	return newTestClient(t, cfg, opts...), srv
}

func echoedHeaders(t *testing.T, out Outcome) map[string]any {
	t.Helper()
	h, ok := out.JSON["headers"].(map[string]any)
	if !ok {
		t.Fatalf("expected headers in echo, got %v", out.JSON)
	}
	return h
}

func TestClient_Do_GET(t *testing.T) {
	c, srv := newUpstreamClient(t, Config{})

	out := c.Do(context.Background(), RequestSpec{Method: MethodGet, URL: "/echo"})
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.JSON["method"] != "GET" {
		t.Errorf("expected GET, got %v", out.JSON["method"])
	}
	if out.JSON["raw_query"] != "" {
		t.Errorf("expected no query, got %v", out.JSON["raw_query"])
	}
	if got := out.Request.URL.String(); got != srv.URL+"/echo" {
		t.Errorf("expected %s, got %s", srv.URL+"/echo", got)
	}
	if out.Response == nil || out.Response.StatusCode != 200 {
		t.Errorf("expected 200 response, got %+v", out.Response)
	}
	if out.Request.ID == "" {
		t.Error("expected request id")
	}
}

func TestClient_Do_DefaultsToGET(t *testing.T) {
	c, _ := newUpstreamClient(t, Config{})
	out := c.Do(context.Background(), RequestSpec{URL: "/echo"})
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Request.Method != MethodGet || out.JSON["method"] != "GET" {
		t.Errorf("expected GET, got %v / %v", out.Request.Method, out.JSON["method"])
	}
}

func TestClient_Do_QueryOnEveryMethod(t *testing.T) {
	c, _ := newUpstreamClient(t, Config{})

	for _, m := range []Method{MethodGet, MethodPost} {
		out := c.Do(context.Background(), RequestSpec{
			Method: m,
			URL:    "/echo",
			Query:  map[string]string{"q": "a+b c", "lang": "en"},
		})
		if out.Err != nil {
			t.Fatalf("%s: unexpected error: %v", m, out.Err)
		}
		if got := out.JSON["raw_query"]; got != "lang=en&q=a%2Bb%20c" {
			t.Errorf("%s: unexpected raw query %v", m, got)
		}
		query := out.JSON["query"].(map[string]any)
		if query["q"] != "a+b c" {
			t.Errorf("%s: server decoded q as %v", m, query["q"])
		}
	}
}

func TestClient_Do_POST_JSONRoundTrip(t *testing.T) {
	c, _ := newUpstreamClient(t, Config{})

	bodies := []any{
		map[string]any{"name": "Bob", "age": float64(30), "tags": []any{"a", "b"}},
		[]any{float64(1), "two", nil},
		"just a string",
		float64(42),
		true,
		map[string]any{"nested": map[string]any{"deep": []any{map[string]any{"x": float64(1)}}}},
	}
	for _, body := range bodies {
		out := c.Do(context.Background(), RequestSpec{Method: MethodPost, URL: "/echo", Body: body})
		if out.Err != nil {
			t.Fatalf("unexpected error: %v", out.Err)
		}
		var got any
		if err := json.Unmarshal([]byte(out.JSON["body"].(string)), &got); err != nil {
			t.Fatalf("server body is not JSON: %v", err)
		}
		if !reflect.DeepEqual(got, body) {
			t.Errorf("expected %v, got %v", body, got)
		}
		if !reflect.DeepEqual(out.Request.Body, []byte(out.JSON["body"].(string))) {
			t.Error("request descriptor body differs from what was sent")
		}
		if ct := echoedHeaders(t, out)["Content-Type"]; ct != "application/json" {
			t.Errorf("expected application/json, got %v", ct)
		}
	}
}

func TestClient_Do_ContentTypeOnlyWithBody(t *testing.T) {
	c, _ := newUpstreamClient(t, Config{})

	out := c.Do(context.Background(), RequestSpec{Method: MethodPost, URL: "/echo"})
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if _, ok := echoedHeaders(t, out)["Content-Type"]; ok {
		t.Error("expected no Content-Type without a body")
	}

	out = c.Do(context.Background(), RequestSpec{
		Method:  MethodPost,
		URL:     "/echo",
		Headers: map[string]string{"Content-Type": "application/vnd.api+json"},
		Body:    map[string]string{"a": "b"},
	})
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if ct := echoedHeaders(t, out)["Content-Type"]; ct != "application/vnd.api+json" {
		t.Errorf("expected caller Content-Type to be kept, got %v", ct)
	}
}

func TestClient_Do_Headers(t *testing.T) {
	c, _ := newUpstreamClient(t, Config{
		Headers:         map[string]string{"X-Client": "netmanager", "X-Env": "default"},
		RequestIDHeader: "X-Request-ID",
	})

	out := c.Do(context.Background(), RequestSpec{
		URL:     "/echo",
		Headers: map[string]string{"X-Env": "override", "Authorization": "Bearer t"},
	})
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	h := echoedHeaders(t, out)
	if h["X-Client"] != "netmanager" {
		t.Errorf("expected default header, got %v", h["X-Client"])
	}
	if h["X-Env"] != "override" {
		t.Errorf("expected per-request header to win, got %v", h["X-Env"])
	}
	if h["Authorization"] != "Bearer t" {
		t.Errorf("expected Authorization, got %v", h["Authorization"])
	}
	if h["X-Request-Id"] != out.Request.ID {
		t.Errorf("expected request id header %s, got %v", out.Request.ID, h["X-Request-Id"])
	}
}

func TestClient_Do_HeaderNamesOnTheWire(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	lines := make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		var got []string
		for {
			line, err := r.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
			got = append(got, strings.TrimRight(line, "\r\n"))
		}
		lines <- got
		_, _ = io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 2\r\nConnection: close\r\n\r\n{}")
	}()

	c := newTestClient(t, Config{BaseURL: "http://" + ln.Addr().String()})
	out := c.Do(context.Background(), RequestSpec{
		URL:     "/",
		Headers: map[string]string{"x-lower": "v"},
	})
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}

	got := <-lines
	var sawLower bool
	for _, l := range got {
		if l == "x-lower: v" {
			sawLower = true
		}
		if strings.HasPrefix(l, "X-Lower:") {
			t.Errorf("header name was canonicalized: %q", l)
		}
	}
	if !sawLower {
		t.Errorf("expected header line %q, got %v", "x-lower: v", got)
	}
}

func TestClient_Do_LowercaseContentTypeKept(t *testing.T) {
	var got http.Header
	c := newTestClient(t, Config{BaseURL: "http://example.com"},
		WithTransport(DoerFunc(func(r *http.Request) (*http.Response, error) {
			got = r.Header
			return nil, errors.New("stop")
		})))

	c.Do(context.Background(), RequestSpec{
		Method:  MethodPost,
		URL:     "/x",
		Headers: map[string]string{"content-type": "text/plain"},
		Body:    "hi",
	})
	if v := got["content-type"]; len(v) != 1 || v[0] != "text/plain" {
		t.Errorf("expected caller content-type kept, got %v", got)
	}
	if _, ok := got["Content-Type"]; ok {
		t.Errorf("expected no second Content-Type, got %v", got)
	}
}

func TestClient_Do_Preconditions(t *testing.T) {
	var calls int32
	doer := DoerFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("must not be called")
	})
	c := newTestClient(t, Config{BaseURL: "http://example.com"}, WithTransport(doer))

	tests := []struct {
		name string
		spec RequestSpec
		code apperrors.ErrorCode
	}{
		{"empty url", RequestSpec{Method: MethodGet}, apperrors.ErrCodeMissingField},
		{"bad method", RequestSpec{Method: "DELETE", URL: "/x"}, apperrors.ErrCodeInvalidInput},
		{"unencodable body", RequestSpec{Method: MethodPost, URL: "/x", Body: make(chan int)}, apperrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.Do(context.Background(), tt.spec)
			if !IsPrecondition(out.Err) {
				t.Fatalf("expected precondition error, got %v", out.Err)
			}
			appErr, ok := apperrors.AsAppError(out.Err)
			if !ok || appErr.Code != tt.code {
				t.Errorf("expected %s, got %v", tt.code, appErr)
			}
			if out.Request != nil || out.Response != nil {
				t.Error("expected no request or response for precondition failure")
			}
		})
	}
	if calls != 0 {
		t.Errorf("expected no transport calls, got %d", calls)
	}
}

func TestClient_Do_TransportFailure(t *testing.T) {
	c := newTestClient(t, Config{BaseURL: "http://example.com"},
		WithTransport(DoerFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})))

	out := c.Do(context.Background(), RequestSpec{URL: "/x"})
	if !IsTransport(out.Err) || IsTimeout(out.Err) {
		t.Fatalf("expected transport error, got %v", out.Err)
	}
	if out.Request == nil || out.Request.URL.String() != "http://example.com/x" {
		t.Errorf("expected original request, got %+v", out.Request)
	}
	if out.Response != nil {
		t.Errorf("expected no response, got %+v", out.Response)
	}
}

func TestClient_Do_Unreachable(t *testing.T) {
	srv := upstream.New()
	url := srv.URL
	srv.Close()

	c := newTestClient(t, Config{BaseURL: url})
	out := c.Do(context.Background(), RequestSpec{URL: "/echo"})
	if !IsTransport(out.Err) {
		t.Fatalf("expected transport error, got %v", out.Err)
	}
}

func TestClient_Do_NoResponse(t *testing.T) {
	c := newTestClient(t, Config{BaseURL: "http://example.com"},
		WithTransport(DoerFunc(func(*http.Request) (*http.Response, error) {
			return nil, nil
		})))

	out := c.Do(context.Background(), RequestSpec{URL: "/x"})
	if !IsNoResponse(out.Err) {
		t.Fatalf("expected no-response error, got %v", out.Err)
	}
}

func TestClient_Do_Timeout(t *testing.T) {
	c, _ := newUpstreamClient(t, Config{Timeout: 50 * time.Millisecond})

	out := c.Do(context.Background(), RequestSpec{URL: "/slow", Query: map[string]string{"ms": "2000"}})
	if !IsTimeout(out.Err) {
		t.Fatalf("expected timeout error, got %v", out.Err)
	}
	if !IsTransport(out.Err) {
		t.Error("expected timeout to count as transport error")
	}
}

func TestClient_Do_ContextDeadline(t *testing.T) {
	c, _ := newUpstreamClient(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	out := c.Do(ctx, RequestSpec{URL: "/slow", Query: map[string]string{"ms": "2000"}})
	if !IsTimeout(out.Err) {
		t.Fatalf("expected timeout error, got %v", out.Err)
	}
}

func TestClient_Do_ResponseShapes(t *testing.T) {
	c, _ := newUpstreamClient(t, Config{})

	tests := []struct {
		path   string
		check  func(error) bool
		wantOK bool
	}{
		{"/fragment", IsMalformedResponse, false},
		{"/array", IsMalformedResponse, false},
		{"/null", IsMalformedResponse, false},
		{"/malformed", IsMalformedResponse, false},
		{"/empty", IsMalformedResponse, false},
		{"/status/404", nil, true},
		{"/status/500", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			out := c.Do(context.Background(), RequestSpec{URL: tt.path})
			if out.OK() != tt.wantOK {
				t.Fatalf("expected OK=%v, got %v", tt.wantOK, out.Err)
			}
			if tt.check != nil && !tt.check(out.Err) {
				t.Errorf("unexpected error class: %v", out.Err)
			}
			if out.Response == nil {
				t.Error("expected the raw response to be kept")
			}
		})
	}
}

func TestClient_Do_LargeIntegerResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":9007199254740993}`))
	}))
	defer srv.Close()

	c := newTestClient(t, Config{BaseURL: srv.URL})
	out := c.Do(context.Background(), RequestSpec{URL: "/"})
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.JSON["id"] != json.Number("9007199254740993") {
		t.Errorf("expected id 9007199254740993 unchanged, got %v (%T)", out.JSON["id"], out.JSON["id"])
	}
}

func TestClient_Do_ErrorStatusIsSuccess(t *testing.T) {
	c, _ := newUpstreamClient(t, Config{})
	out := c.Do(context.Background(), RequestSpec{URL: "/status/503"})
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Response.StatusCode != 503 {
		t.Errorf("expected 503, got %d", out.Response.StatusCode)
	}
	if out.JSON["status"] != json.Number("503") {
		t.Errorf("expected decoded status, got %v", out.JSON["status"])
	}
}

func TestClient_Send_YieldsOnceAndCloses(t *testing.T) {
	c, _ := newUpstreamClient(t, Config{})

	ch, err := c.Send(context.Background(), RequestSpec{URL: "/echo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, ok := <-ch
	if !ok {
		t.Fatal("expected one outcome")
	}
	if out.Err != nil {
		t.Errorf("unexpected error: %v", out.Err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after one outcome")
	}
}

func TestClient_Send_Precondition(t *testing.T) {
	c := newTestClient(t, Config{BaseURL: "http://example.com"})
	ch, err := c.Send(context.Background(), RequestSpec{})
	if !IsPrecondition(err) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if ch != nil {
		t.Error("expected nil channel on precondition failure")
	}
}

// callbackRecorder counts callback invocations and signals when one arrives.
type callbackRecorder struct {
	mu        sync.Mutex
	successes int
	failures  int
	json      map[string]any
	err       error
	req       *Request
	done      chan struct{}
}

func newCallbackRecorder() *callbackRecorder {
	return &callbackRecorder{done: make(chan struct{}, 2)}
}

func (r *callbackRecorder) onSuccess(json map[string]any, req *Request, _ *Response) {
	r.mu.Lock()
	r.successes++
	r.json, r.req = json, req
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *callbackRecorder) onFailure(err error, req *Request, _ *Response) {
	r.mu.Lock()
	r.failures++
	r.err, r.req = err, req
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *callbackRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	// catch a second, unexpected callback
	time.Sleep(20 * time.Millisecond)
}

func TestClient_SendRequest_Success(t *testing.T) {
	c, _ := newUpstreamClient(t, Config{})
	rec := newCallbackRecorder()
	err := c.SendRequest(context.Background(), RequestSpec{URL: "/status/200"}, rec.onSuccess, rec.onFailure)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.successes != 1 || rec.failures != 0 {
		t.Fatalf("expected exactly one success, got successes=%d failures=%d", rec.successes, rec.failures)
	}
	if rec.json["status"] != json.Number("200") {
		t.Errorf("expected status ok payload, got %v", rec.json)
	}
	if rec.req == nil || !strings.HasSuffix(rec.req.URL.Path, "/status/200") {
		t.Errorf("expected original request, got %+v", rec.req)
	}
}

func TestClient_SendRequest_TransportFailure(t *testing.T) {
	c := newTestClient(t, Config{BaseURL: "http://example.com"},
		WithTransport(DoerFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("network is down")
		})))

	rec := newCallbackRecorder()
	if err := c.SendRequest(context.Background(), RequestSpec{URL: "/x"}, rec.onSuccess, rec.onFailure); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.failures != 1 || rec.successes != 0 {
		t.Fatalf("expected exactly one failure, got successes=%d failures=%d", rec.successes, rec.failures)
	}
	if !IsTransport(rec.err) {
		t.Errorf("expected transport error, got %v", rec.err)
	}
	if rec.req == nil || rec.req.URL.String() != "http://example.com/x" {
		t.Errorf("expected original request, got %+v", rec.req)
	}
}

func TestClient_SendRequest_Malformed(t *testing.T) {
	c, _ := newUpstreamClient(t, Config{})

	rec := newCallbackRecorder()
	if err := c.SendRequest(context.Background(), RequestSpec{URL: "/malformed"}, rec.onSuccess, rec.onFailure); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.failures != 1 || rec.successes != 0 {
		t.Fatalf("expected exactly one failure, got successes=%d failures=%d", rec.successes, rec.failures)
	}
	if !IsMalformedResponse(rec.err) {
		t.Errorf("expected malformed response error, got %v", rec.err)
	}
}

func TestClient_SendRequest_Preconditions(t *testing.T) {
	c := newTestClient(t, Config{BaseURL: "http://example.com"})
	rec := newCallbackRecorder()

	if err := c.SendRequest(context.Background(), RequestSpec{URL: "/x"}, nil, rec.onFailure); !IsPrecondition(err) {
		t.Errorf("expected precondition error for nil onSuccess, got %v", err)
	}
	if err := c.SendRequest(context.Background(), RequestSpec{URL: "/x"}, rec.onSuccess, nil); !IsPrecondition(err) {
		t.Errorf("expected precondition error for nil onFailure, got %v", err)
	}
	if err := c.SendRequest(context.Background(), RequestSpec{}, rec.onSuccess, rec.onFailure); !IsPrecondition(err) {
		t.Errorf("expected precondition error for empty url, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.successes+rec.failures != 0 {
		t.Error("expected no callbacks after a precondition failure")
	}
}

func TestClient_ConcurrentCalls(t *testing.T) {
	c, _ := newUpstreamClient(t, Config{})

	var wg sync.WaitGroup
	var failures int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if out := c.Do(context.Background(), RequestSpec{URL: "/echo"}); out.Err != nil {
				atomic.AddInt32(&failures, 1)
			}
		}()
	}
	wg.Wait()
	if failures != 0 {
		t.Errorf("expected no failures, got %d", failures)
	}
}

func TestClient_Do_TracesAndPropagates(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	c, _ := newUpstreamClient(t, Config{Name: "api"})
	out := c.Do(context.Background(), RequestSpec{URL: "/echo"})
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if echoedHeaders(t, out)["Traceparent"] == nil {
		t.Error("expected traceparent header to reach the server")
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != observability.SpanHTTPRequest {
		t.Errorf("expected span %s, got %s", observability.SpanHTTPRequest, spans[0].Name())
	}
}
