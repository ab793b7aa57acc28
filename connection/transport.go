package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/andstatus/fedsync/util"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// maxResponseSize caps a response body read into memory.
var maxResponseSize int64 = 16 << 20

// Upload is a file sent as multipart form data.
type Upload struct {
	Field    string
	Filename string
	Content  io.Reader
}

// Request is one call to a backend.
type Request struct {
	Routine ApiRoutine
	Method  string
	URL     string
	Form    url.Values
	JSON    any
	Upload  *Upload
	Accept  string
}

// Response keeps what the mappers need from an HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Links maps rel to url from the Link header.
	Links map[string]string
}

// JSONObject decodes the body as an object.
func (r *Response) JSONObject() (util.JSONObject, error) {
	obj, err := util.ParseJSONObject(r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "decode object")
	}
	return obj, nil
}

// JSONArray decodes the body as an array.
func (r *Response) JSONArray() ([]any, error) {
	arr, err := util.ParseJSONArray(r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "decode array")
	}
	return arr, nil
}

// Transport executes requests.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Authorizer adds credentials to an outgoing request.
type Authorizer interface {
	Authorize(req *http.Request)
}

// BearerToken authorizes with an OAuth 2 access token.
type BearerToken string

func (t BearerToken) Authorize(req *http.Request) {
	if t != "" {
		req.Header.Set("Authorization", "Bearer "+string(t))
	}
}

// BasicAuth is used by GNU Social and old Twitter style servers.
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Authorize(req *http.Request) {
	if b.Username != "" {
		req.SetBasicAuth(b.Username, b.Password)
	}
}

// HTTPTransport is the Transport over net/http.
type HTTPTransport struct {
	client    *http.Client
	auth      Authorizer
	limiter   *rate.Limiter
	userAgent string
}

type TransportOption func(*HTTPTransport)

func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *HTTPTransport) { t.client = c }
}

func WithAuthorizer(a Authorizer) TransportOption {
	return func(t *HTTPTransport) { t.auth = a }
}

// WithRateLimit spaces requests to at most rps per second. Zero disables
// limiting.
func WithRateLimit(rps float64, burst int) TransportOption {
	return func(t *HTTPTransport) {
		if rps > 0 {
			t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func WithUserAgent(ua string) TransportOption {
	return func(t *HTTPTransport) { t.userAgent = ua }
}

func NewHTTPTransport(opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: util.UserAgent(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindNetwork, Routine: req.Routine, URL: req.URL, Err: err}
		}
	}
	httpReq, err := t.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, &Error{Kind: KindMalformed, Routine: req.Routine, URL: req.URL, Err: err}
	}

	started := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Routine: req.Routine, URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Routine: req.Routine, URL: req.URL, Err: err}
	}
	if int64(len(body)) > maxResponseSize {
		return nil, &Error{
			Kind:       KindMalformed,
			Routine:    req.Routine,
			StatusCode: resp.StatusCode,
			URL:        req.URL,
			Message:    "response body exceeds " + strconv.FormatInt(maxResponseSize, 10) + " bytes",
		}
	}
	log.WithField("routine", req.Routine).Debugf("Transport: %s %s -> %d in %s",
		httpReq.Method, req.URL, resp.StatusCode, time.Since(started).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:       kindOfStatus(resp.StatusCode),
			Routine:    req.Routine,
			StatusCode: resp.StatusCode,
			URL:        req.URL,
			Message:    errorMessage(body),
		}
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Links:      ParseLinkHeader(resp.Header.Values("Link")),
	}, nil
}

func (t *HTTPTransport) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Upload != nil:
		buf := &bytes.Buffer{}
		w := multipart.NewWriter(buf)
		for k, vs := range req.Form {
			for _, v := range vs {
				if err := w.WriteField(k, v); err != nil {
					return nil, err
				}
			}
		}
		part, err := w.CreateFormFile(req.Upload.Field, req.Upload.Filename)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, req.Upload.Content); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		body, contentType = buf, w.FormDataContentType()
	case req.JSON != nil:
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, err
		}
		body, contentType = bytes.NewReader(b), "application/activity+json"
	case len(req.Form) > 0 && method != http.MethodGet:
		body, contentType = strings.NewReader(req.Form.Encode()), "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, err
	}
	if method == http.MethodGet && len(req.Form) > 0 {
		q := httpReq.URL.Query()
		for k, vs := range req.Form {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		httpReq.URL.RawQuery = q.Encode()
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("User-Agent", t.userAgent)
	if t.auth != nil {
		t.auth.Authorize(httpReq)
	}
	return httpReq, nil
}

// errorMessage extracts the message of Twitter and Mastodon style error
// bodies.
func errorMessage(body []byte) string {
	obj, err := util.ParseJSONObject(body)
	if err != nil {
		return ""
	}
	if msg := util.FirstString(obj, "error", "error_description", "message"); msg != "" {
		return msg
	}
	for _, e := range util.Array(obj, "errors") {
		if m, ok := e.(map[string]any); ok {
			if msg := util.FirstString(m, "message"); msg != "" {
				return msg
			}
		}
	}
	return ""
}

var linkPart = regexp.MustCompile(`<([^>]*)>\s*;\s*rel="?([^";]+)"?`)

// ParseLinkHeader reads RFC 8288 links as Mastodon sends them for paging.
func ParseLinkHeader(values []string) map[string]string {
	links := map[string]string{}
	for _, v := range values {
		for _, m := range linkPart.FindAllStringSubmatch(v, -1) {
			for _, rel := range strings.Fields(m[2]) {
				links[rel] = m[1]
			}
		}
	}
	return links
}
