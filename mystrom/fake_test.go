package mystrom

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// seen is one request received by a fakeDevice.
type seen struct {
	Method      string
	Path        string
	Query       string
	Body        string
	ContentType string
	Token       string
	UserAgent   string
	Accept      string
}

// fakeDevice is an HTTP server standing in for a myStrom device.
// Unrouted paths answer 404, like the real firmware.
type fakeDevice struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	reqs   []seen
}

func newFakeDevice(t *testing.T, routes map[string]http.HandlerFunc) *fakeDevice {
	t.Helper()
	f := &fakeDevice{routes: routes}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeDevice) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.reqs = append(f.reqs, seen{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.RawQuery,
		Body:        string(body),
		ContentType: r.Header.Get("Content-Type"),
		Token:       r.Header.Get("Token"),
		UserAgent:   r.Header.Get("User-Agent"),
		Accept:      r.Header.Get("Accept"),
	})
	h, ok := f.routes[r.URL.Path]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

// handle replaces the handler for path.
func (f *fakeDevice) handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = h
}

func (f *fakeDevice) requests() []seen {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]seen(nil), f.reqs...)
}

func (f *fakeDevice) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = nil
}

func jsonReply(v interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
}

func textReply(s string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, s)
	}
}

func emptyReply() http.HandlerFunc { return textReply("") }
