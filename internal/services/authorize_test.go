package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocpisync/internal/models"
	"ocpisync/internal/ocpi"
)

func testStation() *models.ChargingStation {
	return &models.ChargingStation{
		ID:         "CP1",
		SiteAreaID: "SA1",
		Connectors: []models.Connector{{ID: 1, Status: "Available"}},
	}
}

func testSiteStore() *stubSiteStore {
	return &stubSiteStore{
		sites: map[string]*models.Site{"S1": {ID: "S1", Name: "Depot", City: "Berlin", Country: "DEU"}},
		areas: map[string]*models.SiteArea{"SA1": {ID: "SA1", SiteID: "S1", Name: "Depot North"}},
		list:  []models.SiteArea{{ID: "SA1", SiteID: "S1", Name: "Depot North"}},
	}
}

func TestAuthorizeReusesFreshCachedGrant(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	auths := &stubAuthorizationStore{latest: &models.RemoteAuthorization{
		TagID:           "TAG1",
		AuthorizationID: "AUTH-123",
		IssuedAt:        time.Now().UTC().Add(-30 * time.Second),
	}}
	svc := NewAuthorizationService(ocpi.NewClient(5*time.Second), auths, testSiteStore(), 2*time.Minute, zerolog.Nop())

	id, err := svc.Authorize(context.Background(), testEndpoint(srv.URL), "TAG1", testStation(), 1)
	require.NoError(t, err)
	assert.Equal(t, "AUTH-123", id)
	assert.Zero(t, calls.Load(), "fresh cached grant must not hit the remote")
}

func TestAuthorizeCallsRemoteWhenCacheStale(t *testing.T) {
	var gotPath string
	var gotBody ocpi.LocationReferences
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, jsonDecode(r, &gotBody))
		writeEnvelope(w, ocpi.StatusCodeSuccess, ocpi.AuthorizationInfo{
			Allowed:         ocpi.AllowedAllowed,
			AuthorizationID: "AUTH-456",
		})
	}))
	defer srv.Close()

	auths := &stubAuthorizationStore{latest: &models.RemoteAuthorization{
		TagID:           "TAG1",
		AuthorizationID: "AUTH-OLD",
		IssuedAt:        time.Now().UTC().Add(-time.Hour),
	}}
	svc := NewAuthorizationService(ocpi.NewClient(5*time.Second), auths, testSiteStore(), 2*time.Minute, zerolog.Nop())

	id, err := svc.Authorize(context.Background(), testEndpoint(srv.URL), "TAG1", testStation(), 1)
	require.NoError(t, err)

	assert.Equal(t, "AUTH-456", id)
	assert.Equal(t, "/2.1.1/tokens/TAG1/authorize", gotPath)
	assert.Equal(t, "SA1", gotBody.LocationID)
	assert.Equal(t, []string{"CP1*1"}, gotBody.EvseUIDs)

	require.Len(t, auths.saved, 1)
	assert.Equal(t, "AUTH-456", auths.saved[0].AuthorizationID)
}

func TestAuthorizeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, ocpi.StatusCodeSuccess, ocpi.AuthorizationInfo{Allowed: ocpi.AllowedBlocked})
	}))
	defer srv.Close()

	svc := NewAuthorizationService(ocpi.NewClient(5*time.Second), &stubAuthorizationStore{}, testSiteStore(), 2*time.Minute, zerolog.Nop())
	_, err := svc.Authorize(context.Background(), testEndpoint(srv.URL), "TAG1", testStation(), 1)
	assert.ErrorIs(t, err, ErrAuthorizationRejected)
}

func TestAuthorizeAllowedWithoutIDIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, ocpi.StatusCodeSuccess, ocpi.AuthorizationInfo{Allowed: ocpi.AllowedAllowed})
	}))
	defer srv.Close()

	svc := NewAuthorizationService(ocpi.NewClient(5*time.Second), &stubAuthorizationStore{}, testSiteStore(), 2*time.Minute, zerolog.Nop())
	_, err := svc.Authorize(context.Background(), testEndpoint(srv.URL), "TAG1", testStation(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthorizationRejected)
	assert.Contains(t, err.Error(), "authorization_id")
}

func TestAuthorizePreconditions(t *testing.T) {
	svc := NewAuthorizationService(ocpi.NewClient(time.Second), &stubAuthorizationStore{}, testSiteStore(), 2*time.Minute, zerolog.Nop())
	ep := testEndpoint("http://127.0.0.1:1")

	_, err := svc.Authorize(context.Background(), ep, "", testStation(), 1)
	assert.ErrorIs(t, err, ErrPrecondition)

	_, err = svc.Authorize(context.Background(), ep, "TAG1", nil, 1)
	assert.ErrorIs(t, err, ErrPrecondition)

	_, err = svc.Authorize(context.Background(), ep, "TAG1", &models.ChargingStation{ID: "CP9"}, 1)
	assert.ErrorIs(t, err, ErrPrecondition)
}
