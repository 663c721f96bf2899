package httpclient

// SuccessFunc receives the decoded JSON object of a successful call.
type SuccessFunc func(json map[string]any, req *Request, resp *Response)

// FailureFunc receives the error of a failed call. resp is nil when no
// response was read.
type FailureFunc func(err error, req *Request, resp *Response)

// Outcome is the result of one call. Err == nil means success, in which
// case JSON holds the decoded response object. Numbers in JSON are
// json.Number values.
type Outcome struct {
	JSON     map[string]any
	Request  *Request
	Response *Response
	Err      error
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Dispatch invokes exactly one of the callbacks.
func (o Outcome) Dispatch(onSuccess SuccessFunc, onFailure FailureFunc) {
	if o.Err != nil {
		if onFailure != nil {
			onFailure(o.Err, o.Request, o.Response)
		}
		return
	}
	if onSuccess != nil {
		onSuccess(o.JSON, o.Request, o.Response)
	}
}
