// Package upstream runs a fake JSON server for exercising the HTTP client.
package upstream

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Server is an in-process upstream backed by httptest.
//
// Routes:
//
//	ANY  /echo          JSON description of the received request
//	POST /upload        JSON description of the received upload
//	ANY  /fragment      a bare JSON string
//	ANY  /array         a JSON array
//	ANY  /null          the JSON literal null
//	ANY  /malformed     a body that is not JSON
//	ANY  /empty         200 with no body
//	ANY  /status/:code  a JSON object with the given status code
//	ANY  /slow?ms=N     waits N milliseconds, then answers like /echo
type Server struct {
	*httptest.Server
}

// New starts a Server. Callers must Close it.
func New() *Server {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.Any("/echo", echo)
	r.POST("/upload", upload)
	r.Any("/fragment", raw(`"just a string"`))
	r.Any("/array", raw(`[1,2,3]`))
	r.Any("/null", raw(`null`))
	r.Any("/malformed", raw(`{not json`))
	r.Any("/empty", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.Any("/status/:code", status)
	r.Any("/slow", slow)

	return &Server{Server: httptest.NewServer(r)}
}

func raw(body string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(body))
	}
}

func describe(c *gin.Context) (gin.H, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	query := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		query[k] = strings.Join(v, ",")
	}
	headers := make(map[string]string)
	for k, v := range c.Request.Header {
		headers[k] = strings.Join(v, ",")
	}
	return gin.H{
		"method":    c.Request.Method,
		"path":      c.Request.URL.Path,
		"raw_query": c.Request.URL.RawQuery,
		"query":     query,
		"headers":   headers,
		"body":      string(body),
	}, nil
}

func echo(c *gin.Context) {
	desc, err := describe(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, desc)
}

func status(c *gin.Context) {
	code, err := strconv.Atoi(c.Param("code"))
	if err != nil || code < 200 || code > 599 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad status code"})
		return
	}
	c.JSON(code, gin.H{"status": code})
}

func slow(c *gin.Context) {
	ms, _ := strconv.Atoi(c.Query("ms"))
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		echo(c)
	case <-c.Request.Context().Done():
	}
}

func upload(c *gin.Context) {
	contentType := c.GetHeader("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if mediaType != "multipart/form-data" {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"mode":           "raw",
			"content_type":   contentType,
			"disposition":    c.GetHeader("Content-Disposition"),
			"content_length": c.Request.ContentLength,
			"content":        string(body),
		})
		return
	}

	mr, err := c.Request.MultipartReader()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	parts := make([]gin.H, 0, 1)
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		data, err := io.ReadAll(p)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		parts = append(parts, gin.H{
			"field":        p.FormName(),
			"filename":     p.FileName(),
			"content_type": p.Header.Get("Content-Type"),
			"content":      string(data),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":           "multipart",
		"content_type":   contentType,
		"content_length": c.Request.ContentLength,
		"parts":          parts,
	})
}
