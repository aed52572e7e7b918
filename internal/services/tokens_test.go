package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocpisync/internal/ocpi"
)

func tokenPage(uids ...string) []map[string]any {
	out := make([]map[string]any, 0, len(uids))
	for _, uid := range uids {
		out = append(out, map[string]any{
			"uid": uid, "auth_id": "AUTH-" + uid, "type": "RFID",
			"issuer": "EMSP", "valid": true, "last_updated": time.Now().UTC(),
		})
	}
	return out
}

func TestPullTokensPaginatesOnce(t *testing.T) {
	var pages atomic.Int32
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/2.1.1/tokens", func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		switch r.URL.Query().Get("offset") {
		case "":
			w.Header().Set("Link", fmt.Sprintf(`<%s/2.1.1/tokens?offset=2>; rel="next"`, srvURL))
			writeEnvelope(w, ocpi.StatusCodeSuccess, tokenPage("T1", "T2"))
		case "2":
			// No next link on the last page.
			writeEnvelope(w, ocpi.StatusCodeSuccess, tokenPage("T3"))
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	store := &stubTokenStore{}
	svc := NewTokenService(ocpi.NewClient(5*time.Second), store, 50, zerolog.Nop())

	result, err := svc.PullTokens(context.Background(), testEndpoint(srv.URL), false)
	require.NoError(t, err)

	assert.Equal(t, int32(2), pages.Load())
	assert.Equal(t, 3, result.Success)
	assert.Equal(t, 0, result.Failure)
	assert.Equal(t, 3, result.Total)
	require.Len(t, store.upserts, 3)
	assert.Equal(t, "AUTH-T1", store.upserts[0].AuthID)
}

func TestPullTokensStopsWhenNextLinkRepeats(t *testing.T) {
	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		// A partner echoing the requested page as "next" must not loop us.
		w.Header().Set("Link", fmt.Sprintf(`<http://%s%s>; rel="next"`, r.Host, r.URL.RequestURI()))
		writeEnvelope(w, ocpi.StatusCodeSuccess, tokenPage("T1"))
	}))
	defer srv.Close()

	svc := NewTokenService(ocpi.NewClient(5*time.Second), &stubTokenStore{}, 50, zerolog.Nop())
	result, err := svc.PullTokens(context.Background(), testEndpoint(srv.URL), false)
	require.NoError(t, err)

	assert.Equal(t, int32(1), pages.Load())
	assert.Equal(t, 1, result.Success)
}

func TestPullTokensPartialScopesDateFrom(t *testing.T) {
	var gotDateFrom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDateFrom = r.URL.Query().Get("date_from")
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		writeEnvelope(w, ocpi.StatusCodeSuccess, tokenPage())
	}))
	defer srv.Close()

	svc := NewTokenService(ocpi.NewClient(5*time.Second), &stubTokenStore{}, 25, zerolog.Nop())
	_, err := svc.PullTokens(context.Background(), testEndpoint(srv.URL), true)
	require.NoError(t, err)

	from, err := time.Parse(time.RFC3339, gotDateFrom)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(-24*time.Hour), from, time.Minute)
}

func TestPullTokensContinuesAfterItemFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, ocpi.StatusCodeSuccess, tokenPage("T1", "T2", "T3"))
	}))
	defer srv.Close()

	store := &stubTokenStore{failUID: "T2"}
	svc := NewTokenService(ocpi.NewClient(5*time.Second), store, 50, zerolog.Nop())

	result, err := svc.PullTokens(context.Background(), testEndpoint(srv.URL), false)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 1, result.Failure)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, []string{"T2"}, result.ObjectIDsInFailure)
	assert.Len(t, store.upserts, 2)
}
