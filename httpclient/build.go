package httpclient

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/kbukum/netmanager/errors"
)

// resolveURL concatenates the base URL and path and appends query params.
func (c *Client) resolveURL(path string, query map[string]string) (*url.URL, error) {
	full := c.config.BaseURL + path
	u, err := url.Parse(full)
	if err != nil {
		return nil, newPreconditionError(apperrors.InvalidInput("url", err.Error()).WithCause(err))
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, newPreconditionError(apperrors.InvalidInput("url",
			"must resolve to an absolute http(s) URL, got "+full))
	}
	u.RawQuery = encodeQuery(u.RawQuery, query)
	return u, nil
}

// encodeQuery appends params to an existing raw query, keys sorted.
// Spaces are encoded as %20 and any literal '+' as %2B, so servers that
// decode '+' as a space still see the original value.
func encodeQuery(rawQuery string, params map[string]string) string {
	if len(params) == 0 {
		return rawQuery
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString(rawQuery)
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escapeQueryComponent(k))
		b.WriteByte('=')
		b.WriteString(escapeQueryComponent(params[k]))
	}
	return strings.ReplaceAll(b.String(), "+", "%2B")
}

func escapeQueryComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// buildHeader merges the client default headers with per-request ones.
// Names are kept as given; a later name replaces an earlier one that
// differs only in case.
func (c *Client) buildHeader(perRequest map[string]string) http.Header {
	h := make(http.Header, len(c.config.Headers)+len(perRequest)+2)
	setHeader(h, "User-Agent", c.userAgent)
	for k, v := range c.config.Headers {
		setHeader(h, k, v)
	}
	for k, v := range perRequest {
		setHeader(h, k, v)
	}
	return h
}

// setHeader stores name exactly as written, dropping any case variant.
func setHeader(h http.Header, name, value string) {
	for k := range h {
		if strings.EqualFold(k, name) {
			delete(h, k)
		}
	}
	h[name] = []string{value}
}

// headerValue looks name up case-insensitively.
func headerValue(h http.Header, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// requestID returns the ID for this call. A caller-supplied value in the
// configured request ID header is reused; otherwise a new UUID is generated
// and written to that header.
func (c *Client) requestID(h http.Header) string {
	if name := c.config.RequestIDHeader; name != "" {
		if id := headerValue(h, name); id != "" {
			return id
		}
		id := uuid.NewString()
		setHeader(h, name, id)
		return id
	}
	return uuid.NewString()
}
