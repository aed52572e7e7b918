package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"ocpisync/internal/models"
	"ocpisync/internal/ocpi"
)

// LocationService maps the local site-area/station/connector tree to the
// OCPI location/EVSE view of it, and reconciles locations with the remote
// system.
type LocationService struct {
	client   *ocpi.Client
	sites    SiteStore
	stations StationStore
	log      zerolog.Logger
}

func NewLocationService(client *ocpi.Client, sites SiteStore, stations StationStore, log zerolog.Logger) *LocationService {
	return &LocationService{client: client, sites: sites, stations: stations, log: log}
}

// EvseUID derives the wire identifier of one connector. The owning charge
// box id must survive a round trip, so the separator cannot appear in box
// ids.
func EvseUID(chargeBoxID string, connectorID int) string {
	return fmt.Sprintf("%s*%d", chargeBoxID, connectorID)
}

// EvseStatusFromConnector maps an OCPP connector status onto the OCPI EVSE
// status vocabulary.
func EvseStatusFromConnector(status string) ocpi.EvseStatus {
	switch status {
	case "Available":
		return ocpi.EvseAvailable
	case "Preparing", "Charging", "SuspendedEV", "SuspendedEVSE", "Finishing", "Occupied":
		return ocpi.EvseCharging
	case "Reserved":
		return ocpi.EvseReserved
	case "Unavailable":
		return ocpi.EvseInoperative
	case "Faulted":
		return ocpi.EvseOutOfOrder
	default:
		return ocpi.EvseUnknown
	}
}

// ListLocations builds the full location/EVSE tree from local storage.
// Inactive stations are exposed as REMOVED so the partner drops them.
func (s *LocationService) ListLocations(ctx context.Context) ([]ocpi.Location, error) {
	areas, err := s.sites.ListSiteAreas(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing site areas")
	}

	now := time.Now().UTC()
	out := make([]ocpi.Location, 0, len(areas))
	for _, area := range areas {
		loc := ocpi.Location{ID: area.ID, Name: area.Name, LastUpdated: now}
		if site, err := s.sites.GetSite(ctx, area.SiteID); err != nil {
			return nil, errors.Wrapf(err, "loading site %s", area.SiteID)
		} else if site != nil {
			loc.Address = site.Address
			loc.City = site.City
			loc.Country = site.Country
		}

		stations, err := s.stations.ListBySiteArea(ctx, area.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "listing stations of site area %s", area.ID)
		}
		for _, st := range stations {
			for _, conn := range st.Connectors {
				status := EvseStatusFromConnector(conn.Status)
				if st.Inactive {
					status = ocpi.EvseRemoved
				}
				loc.Evses = append(loc.Evses, ocpi.Evse{
					UID:         EvseUID(st.ID, conn.ID),
					EvseID:      EvseUID(st.ID, conn.ID),
					Status:      status,
					LastUpdated: now,
					ChargeBoxID: st.ID,
					ConnectorID: conn.ID,
				})
			}
		}
		out = append(out, loc)
	}
	return out, nil
}

// SessionLocation builds the single-EVSE location snapshot embedded in a
// session or CDR.
func (s *LocationService) SessionLocation(ctx context.Context, station *models.ChargingStation, connectorID int) (*ocpi.Location, error) {
	if station == nil {
		return nil, errors.Wrap(ErrPrecondition, "charging station is required")
	}
	if station.SiteAreaID == "" {
		return nil, errors.Wrapf(ErrPrecondition, "charging station %s is not assigned to a site area", station.ID)
	}
	area, err := s.sites.GetSiteArea(ctx, station.SiteAreaID)
	if err != nil {
		return nil, errors.Wrapf(err, "loading site area %s", station.SiteAreaID)
	}
	if area == nil {
		return nil, errors.Wrapf(ErrPrecondition, "site area %s not found", station.SiteAreaID)
	}

	now := time.Now().UTC()
	loc := &ocpi.Location{ID: area.ID, Name: area.Name, LastUpdated: now}
	if site, err := s.sites.GetSite(ctx, area.SiteID); err != nil {
		return nil, errors.Wrapf(err, "loading site %s", area.SiteID)
	} else if site != nil {
		loc.Address = site.Address
		loc.City = site.City
		loc.Country = site.Country
	}

	status := ocpi.EvseCharging
	for _, conn := range station.Connectors {
		if conn.ID == connectorID {
			status = EvseStatusFromConnector(conn.Status)
		}
	}
	loc.Evses = []ocpi.Evse{{
		UID:         EvseUID(station.ID, connectorID),
		EvseID:      EvseUID(station.ID, connectorID),
		Status:      status,
		LastUpdated: now,
		ChargeBoxID: station.ID,
		ConnectorID: connectorID,
	}}
	return loc, nil
}

// CheckLocation verifies the remote system still knows a location. Unlike
// CDRs there is no auto-repair; a miss is just a failed check.
func (s *LocationService) CheckLocation(ctx context.Context, ep *models.Endpoint, locationID string) error {
	url := fmt.Sprintf("%s/%s/%s/%s", ep.LocationsURL, ep.CountryCode, ep.PartyID, locationID)
	res, err := s.client.Do(ctx, http.MethodGet, url, ep.Token, nil)
	if err != nil {
		return err
	}
	if res.StatusCode != ocpi.StatusCodeSuccess || len(res.Data) == 0 {
		return errors.Errorf("location %s not confirmed by remote: status_code %d", locationID, res.StatusCode)
	}
	var loc ocpi.Location
	if err := res.Bind(&loc); err != nil {
		return errors.Wrapf(err, "malformed location %s in remote response", locationID)
	}
	return nil
}

// CheckLocations sweeps every local location; item failures never abort
// the sweep.
func (s *LocationService) CheckLocations(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error) {
	areas, err := s.sites.ListSiteAreas(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing site areas")
	}

	result := ocpi.NewJobResult()
	for _, area := range areas {
		if err := s.CheckLocation(ctx, ep, area.ID); err != nil {
			s.log.Warn().Err(err).Str("location_id", area.ID).Msg("location check failed")
			result.RecordFailure(area.ID, err)
			continue
		}
		result.RecordSuccess(area.ID)
	}
	return result, nil
}

func transactionObjectID(id int) string { return strconv.Itoa(id) }
