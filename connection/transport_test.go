package connection

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportStatusToErrorKind(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrAuth},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusGone, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
		{420, ErrRateLimited},
		{http.StatusInternalServerError, ErrServer},
		{http.StatusBadGateway, ErrServer},
		{http.StatusBadRequest, ErrMalformed},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		_, err := NewHTTPTransport().Do(context.Background(), &Request{Routine: HomeTimeline, URL: srv.URL})
		srv.Close()

		require.Error(t, err, "status %d", tt.status)
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		var connErr *Error
		require.True(t, errors.As(err, &connErr))
		assert.Equal(t, tt.status, connErr.StatusCode)
		assert.Equal(t, "nope", connErr.Message)
		assert.Equal(t, HomeTimeline, connErr.Routine)
	}
}

func TestTransportRetryableKinds(t *testing.T) {
	assert.True(t, IsRetryable(&Error{Kind: KindServer}))
	assert.True(t, IsRetryable(&Error{Kind: KindRateLimited}))
	assert.True(t, IsRetryable(&Error{Kind: KindNetwork}))
	assert.False(t, IsRetryable(&Error{Kind: KindAuth}))
	assert.False(t, IsRetryable(&Error{Kind: KindUnsupported}))
}

func TestTransportSendsCredentialsAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "fedsync-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "5", r.URL.Query().Get("count"))
		w.Header().Add("Link", `<https://example.org/next>; rel="next"`)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	transport := NewHTTPTransport(WithAuthorizer(BearerToken("secret")), WithUserAgent("fedsync-test"), WithRateLimit(100, 1))
	resp, err := transport.Do(context.Background(), &Request{URL: srv.URL, Form: map[string][]string{"count": {"5"}}})
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/next", resp.Links["next"])
}

func TestTransportPostsFormAndMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			file, header, err := r.FormFile("media")
			if assert.NoError(t, err) {
				body, _ := io.ReadAll(file)
				assert.Equal(t, "cat.png", header.Filename)
				assert.Equal(t, "png-bytes", string(body))
			}
		} else {
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "hello", r.PostForm.Get("status"))
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	transport := NewHTTPTransport(WithAuthorizer(BasicAuth{Username: "u", Password: "p"}))
	_, err := transport.Do(context.Background(), &Request{Method: http.MethodPost, URL: srv.URL, Form: map[string][]string{"status": {"hello"}}})
	require.NoError(t, err)
	_, err = transport.Do(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Upload: &Upload{Field: "media", Filename: "cat.png", Content: strings.NewReader("png-bytes")},
	})
	require.NoError(t, err)
}

func TestTransportNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPTransport().Do(context.Background(), &Request{Routine: GetNote, URL: url})
	assert.ErrorIs(t, err, ErrNetwork)
	assert.True(t, IsRetryable(err))
}

func TestTransportRejectsOversizedBody(t *testing.T) {
	saved := maxResponseSize
	maxResponseSize = 16
	t.Cleanup(func() { maxResponseSize = saved })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/big" {
			_, _ = w.Write([]byte(strings.Repeat("x", 100)))
			return
		}
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPTransport().Do(context.Background(), &Request{Routine: GetNote, URL: srv.URL + "/big"})
	assert.ErrorIs(t, err, ErrMalformed)
	assert.False(t, IsRetryable(err))

	resp, err := NewHTTPTransport().Do(context.Background(), &Request{Routine: GetNote, URL: srv.URL + "/small"})
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(resp.Body))
}

func TestParseLinkHeader(t *testing.T) {
	links := ParseLinkHeader([]string{
		`<https://m.example/api/v1/timelines/home?max_id=7>; rel="next", <https://m.example/api/v1/timelines/home?min_id=9>; rel="prev"`,
	})
	assert.Equal(t, "https://m.example/api/v1/timelines/home?max_id=7", links["next"])
	assert.Equal(t, "https://m.example/api/v1/timelines/home?min_id=9", links["prev"])
	assert.Empty(t, ParseLinkHeader(nil))
}
