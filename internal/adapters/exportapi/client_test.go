package exportapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-export/internal/domain/model"
	apperrors "github.com/target/mmk-export/internal/errors"
)

type recordedRequest struct {
	Path    string
	Headers http.Header
	Body    map[string]any
}

type fakeServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Path: r.URL.Path, Headers: r.Header.Clone(), Body: body})
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeServer) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request), mutate ...func(*Config)) (*Client, *fakeServer) {
	t.Helper()
	fs := &fakeServer{handler: handler}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	cfg := Config{
		BaseURL:      srv.URL + "/a/demo/data/export/custom",
		NewRequestID: func() string { return "req-1" },
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c, fs
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)

	_, err = NewClient(Config{BaseURL: "ftp://example.com"})
	require.Error(t, err)

	_, err = NewClient(Config{BaseURL: "https://example.com", SessionCookie: "novalue"})
	require.Error(t, err)
}

func TestClient_SubmitExport(t *testing.T) {
	c, fs := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"success": true, "download_id": "abc"})
	})

	resp, err := c.SubmitExport(context.Background(), model.SubmitRequest{
		Exports:       []model.ExportDescriptor{{ExportID: "e1", ExportType: "form"}},
		MaxColumnSize: 2000,
		FormData:      json.RawMessage(`{"type_or_group":"group"}`),
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "abc", resp.DownloadID)

	req := fs.last(t)
	assert.Equal(t, "/a/demo/data/export/custom/prepare_custom_export/", req.Path)
	assert.Equal(t, "XMLHttpRequest", req.Headers.Get("X-Requested-With"))
	assert.Equal(t, "req-1", req.Headers.Get("X-Request-ID"))
	assert.Equal(t, "application/json", req.Headers.Get("Content-Type"))
	assert.InDelta(t, 2000, req.Body["max_column_size"], 0)
	assert.Equal(t, map[string]any{"type_or_group": "group"}, req.Body["form_data"])
}

func TestClient_SubmitMultimediaOmitsColumnLimit(t *testing.T) {
	c, fs := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"success": true, "download_id": "mm"})
	})

	resp, err := c.SubmitMultimedia(context.Background(), model.SubmitRequest{
		Exports:       []model.ExportDescriptor{{ExportID: "e1"}},
		MaxColumnSize: 2000,
	})
	require.NoError(t, err)
	assert.Equal(t, "mm", resp.DownloadID)

	req := fs.last(t)
	assert.Equal(t, "/a/demo/data/export/custom/prepare_form_multimedia/", req.Path)
	assert.NotContains(t, req.Body, "max_column_size")
}

func TestClient_QueryStatus(t *testing.T) {
	c, fs := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"is_poll_successful":true,"is_alive":null,"has_file":false,"is_ready":false,"progress":{"current":3,"percent":"?"}}`)
	})

	resp, err := c.QueryStatus(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, resp.IsPollSuccessful)
	assert.True(t, resp.BackendNotAlive())
	assert.InDelta(t, 3, resp.Progress.CurrentUnits(), 0.001)
	assert.False(t, resp.Progress.Percent.Valid)

	req := fs.last(t)
	assert.Equal(t, "/a/demo/data/export/custom/poll_custom_export_download/", req.Path)
	assert.Equal(t, "abc", req.Body["download_id"])
}

func TestClient_RequestCompletionEmail(t *testing.T) {
	c, fs := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.RequestCompletionEmail(context.Background(), "abc"))
	req := fs.last(t)
	assert.Equal(t, "/a/demo/data/export/custom/add_export_email_request/", req.Path)
	assert.Equal(t, "abc", req.Body["download_id"])
}

func TestClient_HTTPError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.QueryStatus(context.Background(), "abc")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Equal(t, "boom", httpErr.Body)
}

func TestClient_HTTPErrorKeepsServerMessage(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"bad request", http.StatusBadRequest, `{"success":false,"error":"Too many columns selected"}`, "Too many columns selected"},
		{"server error", http.StatusInternalServerError, `{"error":"Export task crashed"}`, "Export task crashed"},
		{"json without error", http.StatusInternalServerError, `{"success":false}`, ""},
		{"plain text", http.StatusServiceUnavailable, "maintenance", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.SubmitExport(context.Background(), model.SubmitRequest{})
			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.body, httpErr.Body)
			assert.Equal(t, tt.message, httpErr.ServerMessage())
			assert.Equal(t, tt.message, apperrors.ServerText(err))
		})
	}
}

func TestClient_MalformedJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>login</html>`)
	})

	_, err := c.SubmitExport(context.Background(), model.SubmitRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestClient_CSRFCookieEchoedAsHeader(t *testing.T) {
	c, fs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok123", Path: "/"})
		writeJSON(w, map[string]any{"is_poll_successful": true})
	}, func(cfg *Config) { cfg.SessionCookie = "sessionid=s1" })

	_, err := c.QueryStatus(context.Background(), "abc")
	require.NoError(t, err)
	first := fs.last(t)
	assert.Empty(t, first.Headers.Get("X-CSRFToken"))
	assert.Contains(t, first.Headers.Get("Cookie"), "sessionid=s1")

	_, err = c.QueryStatus(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "tok123", fs.last(t).Headers.Get("X-CSRFToken"))
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"is_poll_successful": true})
	}, func(cfg *Config) {
		cfg.RateLimit = 0.001
		cfg.Burst = 1
	})

	_, err := c.QueryStatus(context.Background(), "abc")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.QueryStatus(ctx, "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestClient_TransportFailure(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://127.0.0.1:1/export/", Timeout: time.Second})
	require.NoError(t, err)
	_, err = c.QueryStatus(context.Background(), "abc")
	require.Error(t, err)
}
