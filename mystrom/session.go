package mystrom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Version is reported in the User-Agent header.
const Version = "1.0.0"

// DefaultTimeout bounds every request made by a Session.
const DefaultTimeout = 10 * time.Second

const (
	userAgent    = "mystrom-go/" + Version
	acceptHeader = "application/json, text/plain, */*"
)

// Session is the connection to a single device.
// It is shared by all device clients through embedding.
//
// A Session is not safe for concurrent use.
type Session struct {
	base    *url.URL
	token   string
	timeout time.Duration
	log     zerolog.Logger

	client *http.Client
	owned  bool // client was created by us
	closed bool
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient makes the Session borrow c instead of creating its own.
// Close never touches a borrowed client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.client = c }
}

// WithToken sets the secret sent in the Token header.
func WithToken(token string) Option {
	return func(s *Session) { s.token = token }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithLogger sets the logger used for request tracing. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// NewSession creates a Session for host, which is either a bare host[:port]
// or an http URL whose path is used as the base for relative endpoints.
func NewSession(host string, opts ...Option) *Session {
	s := &Session{
		base:    baseURL(host),
		timeout: DefaultTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("host", s.base.Host).Logger()
	return s
}

func baseURL(host string) *url.URL {
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		// Keep the raw string so the failure surfaces as a ConnectionError on first use.
		u = &url.URL{Scheme: "http", Host: host}
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery, u.Fragment = "", ""
	return u
}

// Host returns the device address.
func (s *Session) Host() string { return s.base.Host }

// Close releases the HTTP client if the Session owns it.
// It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.owned && s.client != nil {
		s.client.CloseIdleConnections()
	}
	return nil
}

func (s *Session) httpClient() *http.Client {
	if s.client == nil {
		s.client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 1,
				IdleConnTimeout:     30 * time.Second,
			},
		}
		s.owned = true
	}
	return s.client
}

// endpoint resolves path against the base URL.
// Relative paths join under the base; absolute paths start at the device root.
func (s *Session) endpoint(path string, query url.Values) string {
	ref := &url.URL{Path: path}
	u := s.base.ResolveReference(ref)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

type request struct {
	method string
	path   string
	query  url.Values
	form   string      // already-encoded form body
	json   interface{} // JSON body
}

type response struct {
	status      int
	contentType string
	body        []byte
}

func (r *response) isJSON() bool {
	mt, _, err := mime.ParseMediaType(r.contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func (r *response) decode(v interface{}) error {
	if err := json.Unmarshal(r.body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// value returns the decoded JSON body, or the text body if the device did not send JSON.
func (r *response) value() interface{} {
	if r.isJSON() {
		var v interface{}
		if err := json.Unmarshal(r.body, &v); err == nil {
			return v
		}
	}
	return string(r.body)
}

// object decodes the body as a JSON object.
// The bool result is false if the body is not a JSON object.
func (r *response) object() (map[string]interface{}, bool) {
	var m map[string]interface{}
	if err := json.Unmarshal(r.body, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func (s *Session) do(ctx context.Context, req request) (*response, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if req.method == "" {
		req.method = http.MethodGet
	}

	var body io.Reader
	var contentType string
	switch {
	case req.json != nil:
		b, err := json.Marshal(req.json)
		if err != nil {
			return nil, fmt.Errorf("encoding JSON request: %w", err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	case req.form != "":
		body, contentType = strings.NewReader(req.form), "application/x-www-form-urlencoded"
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target := s.endpoint(req.path, req.query)
	hreq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, &ConnectionError{Host: s.Host(), Reason: reasonComm, Err: err}
	}
	hreq.Header.Set("User-Agent", userAgent)
	hreq.Header.Set("Accept", acceptHeader)
	if s.token != "" {
		hreq.Header.Set("Token", s.token)
	}
	if contentType != "" {
		hreq.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	res, err := s.httpClient().Do(hreq)
	if err != nil {
		s.log.Debug().Err(err).Str("method", req.method).Str("url", target).Msg("request failed")
		return nil, s.classify(ctx, err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	s.log.Debug().
		Str("method", req.method).
		Str("url", target).
		Int("status", res.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("request")

	resp := &response{
		status:      res.StatusCode,
		contentType: res.Header.Get("Content-Type"),
		body:        b,
	}
	if res.StatusCode == http.StatusNotFound {
		return nil, &ConnectionError{Host: s.Host(), Reason: reasonNotFound}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		perr := &ProtocolError{StatusCode: res.StatusCode, Body: b}
		if resp.isJSON() {
			perr.JSON = resp.value()
		}
		return nil, perr
	}
	return resp, nil
}

func (s *Session) classify(ctx context.Context, err error) error {
	reason := reasonComm
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		reason = reasonTimeout
	case errors.Is(err, context.Canceled):
		reason = reasonCancelled
	case errors.As(err, &nerr) && nerr.Timeout():
		reason = reasonTimeout
	}
	return &ConnectionError{Host: s.Host(), Reason: reason, Err: err}
}

// Raw issues a GET for path and returns the body unmodified.
func (s *Session) Raw(ctx context.Context, path string) ([]byte, error) {
	resp, err := s.do(ctx, request{path: path})
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// Get issues a GET for path and returns the decoded JSON value,
// or the text body if the device did not answer with JSON.
func (s *Session) Get(ctx context.Context, path string) (interface{}, error) {
	resp, err := s.do(ctx, request{path: path})
	if err != nil {
		return nil, err
	}
	return resp.value(), nil
}

// getObject fetches path and decodes it into v.
func (s *Session) getObject(ctx context.Context, path string, v interface{}) error {
	resp, err := s.do(ctx, request{path: path})
	if err != nil {
		return err
	}
	return resp.decode(v)
}
