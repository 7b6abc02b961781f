package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// ExportServerBasePath is where FakeExportServer mounts the export views.
const ExportServerBasePath = "/a/demo/data/export/custom/"

// FakeExportServer is a scripted export server. Status polls replay Statuses in
// order and repeat the last entry once the script runs out.
type FakeExportServer struct {
	*httptest.Server

	mu         sync.Mutex
	submit     map[string]any
	statuses   []string
	polls      int
	emails     []string
	submitPath string
}

// NewFakeExportServer starts a server whose submit endpoints reply with submitReply
// and whose poll endpoint replays statuses. Replies are raw JSON.
func NewFakeExportServer(submitReply string, statuses ...string) *FakeExportServer {
	f := &FakeExportServer{statuses: statuses}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.serve(w, r, submitReply)
	}))
	return f
}

// BaseURL is the export view root to configure clients with.
func (f *FakeExportServer) BaseURL() string {
	return f.URL + ExportServerBasePath
}

func (f *FakeExportServer) serve(w http.ResponseWriter, r *http.Request, submitReply string) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	endpoint := strings.TrimPrefix(r.URL.Path, ExportServerBasePath)
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()

	switch endpoint {
	case "prepare_custom_export/", "prepare_form_multimedia/":
		f.submit = body
		f.submitPath = endpoint
		_, _ = io.WriteString(w, submitReply)
	case "poll_custom_export_download/":
		if len(f.statuses) == 0 {
			http.Error(w, "no status scripted", http.StatusInternalServerError)
			return
		}
		i := min(f.polls, len(f.statuses)-1)
		f.polls++
		_, _ = io.WriteString(w, f.statuses[i])
	case "add_export_email_request/":
		if id, ok := body["download_id"].(string); ok {
			f.emails = append(f.emails, id)
		}
		_, _ = io.WriteString(w, `{}`)
	default:
		http.NotFound(w, r)
	}
}

// SubmitBody returns the last decoded submit request and the endpoint it hit.
func (f *FakeExportServer) SubmitBody() (map[string]any, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submit, f.submitPath
}

// Polls returns how many status queries were served.
func (f *FakeExportServer) Polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

// Emails returns the download ids of completion email requests.
func (f *FakeExportServer) Emails() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.emails...)
}
