// mock_transport.go - Scripted upload transport for testing
package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/image-uploader/backend/internal/uploader"
)

// ProgressStep is one scripted progress callback.
type ProgressStep struct {
	Loaded int64
	Total  int64
}

// ReceivedPart records a part the transport was asked to send.
type ReceivedPart struct {
	FieldName   string
	FileName    string
	ContentType string
	Content     string
}

// MockTransport replays scripted progress and then settles with Result or Err.
// If Gate is set, the transport waits on it before settling. A non-empty
// PanicWith makes the transport panic after replaying the steps.
type MockTransport struct {
	Steps     []ProgressStep
	Result    *uploader.Result
	Err       error
	Gate      chan struct{}
	PanicWith string

	mu    sync.Mutex
	calls int
	parts []ReceivedPart
}

func (m *MockTransport) Upload(ctx context.Context, parts []uploader.Part, progress uploader.ProgressFunc) (*uploader.Result, error) {
	received := make([]ReceivedPart, 0, len(parts))
	for _, p := range parts {
		rp := ReceivedPart{FieldName: p.FieldName, FileName: p.FileName, ContentType: p.ContentType}
		if rc, err := p.Open(); err == nil {
			data, _ := io.ReadAll(rc)
			rc.Close()
			rp.Content = string(data)
		}
		received = append(received, rp)
	}

	m.mu.Lock()
	m.calls++
	m.parts = received
	m.mu.Unlock()

	for _, s := range m.Steps {
		if progress != nil {
			progress(s.Loaded, s.Total)
		}
	}

	if m.PanicWith != "" {
		panic(m.PanicWith)
	}

	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &uploader.Result{StatusCode: 200, Body: []byte(`{}`)}, nil
}

// Calls returns how many uploads were issued
func (m *MockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Parts returns the parts of the last upload
func (m *MockTransport) Parts() []ReceivedPart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ReceivedPart(nil), m.parts...)
}
