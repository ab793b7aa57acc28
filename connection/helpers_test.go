package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	"github.com/stretchr/testify/require"
)

// noNetwork fails the test on any request.
type noNetwork struct {
	t *testing.T
}

func (n noNetwork) Do(_ context.Context, req *Request) (*Response, error) {
	n.t.Errorf("unexpected request to %q", req.URL)
	return nil, &Error{Kind: KindNetwork}
}

func testOrigin(t domain.OriginType, url string) *domain.Origin {
	return &domain.Origin{ID: int64(t), Name: t.String(), Type: t, Host: "social.example", URL: url}
}

func testAccount(origin *domain.Origin, oid string) *domain.Actor {
	account := domain.NewActor(origin, oid)
	account.ActorID = 1
	account.SetUsername("me")
	return account
}

func mustObject(t *testing.T, s string) util.JSONObject {
	t.Helper()
	obj, err := util.ParseJSONObject([]byte(s))
	require.NoError(t, err)
	return obj
}

// newTestClient serves mux and connects account of an origin of type typ to it.
func newTestClient(t *testing.T, typ domain.OriginType, mux http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	origin := testOrigin(typ, srv.URL)
	client, err := New(origin, testAccount(origin, "42"), NewHTTPTransport())
	require.NoError(t, err)
	return client, srv
}

func oids(acts []*domain.Activity) []string {
	out := make([]string, 0, len(acts))
	for _, act := range acts {
		out = append(out, act.Note().OID)
	}
	return out
}
