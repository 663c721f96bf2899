// Package httpclient is a small JSON HTTP client.
//
// A Client is built once from a Config and is safe for concurrent use.
// Every call resolves to exactly one Outcome: a decoded JSON object on
// success, or a classified *Error on failure.
//
//	c, err := httpclient.New(httpclient.Config{BaseURL: "https://api.example.com"})
//	out := c.Do(ctx, httpclient.RequestSpec{
//	    Method: httpclient.MethodGet,
//	    URL:    "/items",
//	    Query:  map[string]string{"q": "a+b"},
//	})
//	if out.Err != nil { ... }
//
// The same call can run in the background and report through a channel
// (Send) or through callbacks (SendRequest). File uploads go through
// DoUpload, SendUpload and SendUploadRequest.
//
// Response status codes are not interpreted. Any response whose body is a
// JSON object is a success, and the status is available on Outcome.Response.
package httpclient
