package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocpisync/internal/models"
	"ocpisync/internal/ocpi"
)

func TestEvseStatusFromConnector(t *testing.T) {
	cases := map[string]ocpi.EvseStatus{
		"Available":     ocpi.EvseAvailable,
		"Preparing":     ocpi.EvseCharging,
		"Charging":      ocpi.EvseCharging,
		"SuspendedEV":   ocpi.EvseCharging,
		"SuspendedEVSE": ocpi.EvseCharging,
		"Finishing":     ocpi.EvseCharging,
		"Occupied":      ocpi.EvseCharging,
		"Reserved":      ocpi.EvseReserved,
		"Unavailable":   ocpi.EvseInoperative,
		"Faulted":       ocpi.EvseOutOfOrder,
		"SomethingNew":  ocpi.EvseUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, EvseStatusFromConnector(in), in)
	}
}

func TestListLocationsExposesInactiveStationsAsRemoved(t *testing.T) {
	stations := &stubStationStore{bySiteArea: map[string][]models.ChargingStation{"SA1": {
		{ID: "CP1", SiteAreaID: "SA1", Connectors: []models.Connector{{ID: 1, Status: "Available"}, {ID: 2, Status: "Faulted"}}},
		{ID: "CP2", SiteAreaID: "SA1", Inactive: true, Connectors: []models.Connector{{ID: 1, Status: "Available"}}},
	}}}
	svc := NewLocationService(ocpi.NewClient(time.Second), testSiteStore(), stations, zerolog.Nop())

	locs, err := svc.ListLocations(context.Background())
	require.NoError(t, err)
	require.Len(t, locs, 1)

	loc := locs[0]
	assert.Equal(t, "SA1", loc.ID)
	assert.Equal(t, "Depot North", loc.Name)
	assert.Equal(t, "Berlin", loc.City)
	require.Len(t, loc.Evses, 3)
	assert.Equal(t, "CP1*1", loc.Evses[0].UID)
	assert.Equal(t, ocpi.EvseAvailable, loc.Evses[0].Status)
	assert.Equal(t, ocpi.EvseOutOfOrder, loc.Evses[1].Status)
	assert.Equal(t, "CP2*1", loc.Evses[2].UID)
	assert.Equal(t, ocpi.EvseRemoved, loc.Evses[2].Status)
}

func TestSessionLocationRequiresSiteArea(t *testing.T) {
	svc := NewLocationService(ocpi.NewClient(time.Second), testSiteStore(), &stubStationStore{}, zerolog.Nop())

	_, err := svc.SessionLocation(context.Background(), nil, 1)
	assert.ErrorIs(t, err, ErrPrecondition)

	_, err = svc.SessionLocation(context.Background(), &models.ChargingStation{ID: "CP1"}, 1)
	assert.ErrorIs(t, err, ErrPrecondition)

	loc, err := svc.SessionLocation(context.Background(), testStation(), 1)
	require.NoError(t, err)
	assert.Equal(t, "SA1", loc.ID)
	require.Len(t, loc.Evses, 1)
	assert.Equal(t, "CP1*1", loc.Evses[0].UID)
}

func TestCheckLocationsIsolatesItemFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2.1.1/locations/DE/ABC/SA1", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, ocpi.StatusCodeSuccess, ocpi.Location{ID: "SA1"})
	})
	mux.HandleFunc("/2.1.1/locations/DE/ABC/SA2", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, ocpi.StatusCodeUnknownObject, nil)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sites := testSiteStore()
	sites.list = append(sites.list, models.SiteArea{ID: "SA2", SiteID: "S1", Name: "Depot South"})
	sites.areas["SA2"] = &models.SiteArea{ID: "SA2", SiteID: "S1", Name: "Depot South"}

	svc := NewLocationService(ocpi.NewClient(5*time.Second), sites, &stubStationStore{}, zerolog.Nop())
	result, err := svc.CheckLocations(context.Background(), testEndpoint(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Failure)
	assert.Equal(t, []string{"SA1"}, result.ObjectIDsInSuccess)
	assert.Equal(t, []string{"SA2"}, result.ObjectIDsInFailure)
}
