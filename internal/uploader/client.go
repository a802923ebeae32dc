// Package uploader sends a widget's file selection to the remote endpoint as a
// single multipart/form-data POST and reports upload progress.
package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// ProgressFunc receives cumulative bytes sent and the total body size.
// It is called zero or more times with non-decreasing loaded values.
type ProgressFunc func(loaded, total int64)

// Part is one file field of the multipart body.
type Part struct {
	FieldName   string
	FileName    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// Result is the outcome of a successful upload.
type Result struct {
	StatusCode int
	Body       []byte
}

// StatusError reports a non-2xx response from the endpoint.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upload endpoint returned status %d", e.StatusCode)
}

// Config holds the fixed request settings.
type Config struct {
	Endpoint    string
	HeaderName  string
	HeaderValue string
}

// Client performs the outbound upload request.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates an upload client. A nil httpClient uses http.DefaultClient.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Endpoint returns the configured upload URL.
func (c *Client) Endpoint() string {
	return c.cfg.Endpoint
}

// Upload builds the multipart body from parts and POSTs it to the endpoint.
// Any 2xx response is a success; everything else is returned as an error.
func (c *Client) Upload(ctx context.Context, parts []Part, progress ProgressFunc) (*Result, error) {
	body, contentType, err := BuildBody(parts)
	if err != nil {
		return nil, err
	}

	total := int64(body.Len())
	reader := &progressReader{r: bytes.NewReader(body.Bytes()), total: total, fn: progress}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)
	if c.cfg.HeaderName != "" {
		req.Header.Set(c.cfg.HeaderName, c.cfg.HeaderValue)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	}

	return &Result{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// BuildBody encodes parts as a multipart/form-data body, in order.
func BuildBody(parts []Part) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, p := range parts {
		if err := writePart(writer, p); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

func writePart(writer *multipart.Writer, p Part) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(p.FieldName), escapeQuotes(p.FileName)))
	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	w, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("creating part %s: %w", p.FieldName, err)
	}

	src, err := p.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", p.FileName, err)
	}
	defer src.Close()

	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("writing part %s: %w", p.FieldName, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// progressReader reports cumulative bytes read to fn.
type progressReader struct {
	r      io.Reader
	loaded int64
	total  int64
	fn     ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		if p.fn != nil {
			p.fn(p.loaded, p.total)
		}
	}
	return n, err
}
