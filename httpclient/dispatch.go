package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// resolve turns a finished exchange into an Outcome.
// The checks run in order and the first that fails decides the error.
func resolve(req *Request, resp *Response, err error) Outcome {
	out := Outcome{Request: req, Response: resp}

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	switch {
	case err != nil:
		host := ""
		if req != nil && req.URL != nil {
			host = req.URL.Host
		}
		out.Err = newTransportError(host, statusCode, err)
	case resp == nil:
		out.Err = newNoResponseError()
	case len(bytes.TrimSpace(resp.Body)) == 0:
		out.Err = newMalformedResponseError(statusCode, "empty response body", nil)
	default:
		v, err := decodeJSON(resp.Body)
		if err != nil {
			out.Err = newMalformedResponseError(statusCode, "response body is not valid JSON", err)
			break
		}
		obj, ok := v.(map[string]any)
		if !ok {
			out.Err = newMalformedResponseError(statusCode,
				fmt.Sprintf("expected a JSON object, got %s", jsonKind(v)), nil)
			break
		}
		out.JSON = obj
	}
	return out
}

// decodeJSON decodes a single JSON value. Numbers stay json.Number so
// integers beyond 2^53 keep every digit.
func decodeJSON(body []byte) (any, error) {
	d := json.NewDecoder(bytes.NewReader(body))
	d.UseNumber()

	var v any
	if err := d.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := d.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return nil, err
	}
	return v, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
