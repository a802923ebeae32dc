package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/image-uploader/backend/internal/models"
	"github.com/image-uploader/backend/internal/session"
	"github.com/image-uploader/backend/internal/testutil"
	"github.com/image-uploader/backend/internal/upload"
	"github.com/image-uploader/backend/internal/widget"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	e         *echo.Echo
	store     *testutil.MockStorage
	transport *testutil.MockTransport
	sessions  *session.Manager
	jobs      *upload.Manager
}

func newTestEnv(t *testing.T, transport *testutil.MockTransport) *testEnv {
	t.Helper()
	if transport == nil {
		transport = &testutil.MockTransport{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := testutil.NewMockStorage()
	sessions := session.NewManager(store, transport, widget.DefaultAllowedTypes, 10)
	jobs := upload.NewManager(ctx)

	e := echo.New()
	SetupMiddleware(e)
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Sessions: sessions,
		Jobs:     jobs,
		Version:  "test",
	}))

	return &testEnv{
		e:         e,
		store:     store,
		transport: transport,
		sessions:  sessions,
		jobs:      jobs,
	}
}

func (env *testEnv) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) mount(t *testing.T) models.WidgetSnapshot {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/widgets", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeSnapshot(t, rec)
}

type testFile struct {
	name        string
	contentType string
	content     string
}

func (env *testEnv) selectFiles(t *testing.T, id string, source models.Source, files ...testFile) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, files...)
	return env.do(http.MethodPost, fmt.Sprintf("/api/widgets/%s/files?source=%s", id, source), body, contentType)
}

func multipartBody(t *testing.T, files ...testFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FilesField, f.name))
		h.Set("Content-Type", f.contentType)
		pw, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) models.WidgetSnapshot {
	t.Helper()
	var snap models.WidgetSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}
