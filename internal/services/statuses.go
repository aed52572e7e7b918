package services

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"ocpisync/internal/models"
	"ocpisync/internal/ocpi"
)

// ActionPatchLocations is the lease name of the status broadcast. It is the
// only job that reads and rewrites the endpoint's patch-job snapshot, so it
// is the only one that needs cross-instance exclusion.
const ActionPatchLocations = "patch-locations"

type StatusService struct {
	client        *ocpi.Client
	endpoints     EndpointStore
	locations     *LocationService
	notifications StatusNotificationStore
	locks         LockStore
	notifier      Notifier
	lockTTL       time.Duration
	log           zerolog.Logger
}

func NewStatusService(client *ocpi.Client, endpoints EndpointStore, locations *LocationService,
	notifications StatusNotificationStore, locks LockStore, notifier Notifier,
	lockTTL time.Duration, log zerolog.Logger) *StatusService {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &StatusService{
		client: client, endpoints: endpoints, locations: locations,
		notifications: notifications, locks: locks, notifier: notifier,
		lockTTL: lockTTL, log: log,
	}
}

// SendEVSEStatuses pushes EVSE availability to the partner. full resends
// everything; otherwise only charge boxes that failed last run or changed
// status since the previous run's start are patched. Returns ErrLockHeld
// when another instance holds the lease; the caller skips this tick.
func (s *StatusService) SendEVSEStatuses(ctx context.Context, ep *models.Endpoint, full bool) (*ocpi.JobResult, error) {
	lock, err := s.locks.TryAcquire(ctx, ep.ID, ActionPatchLocations, s.lockTTL)
	if err != nil {
		return nil, errors.Wrap(err, "acquiring patch-locations lease")
	}
	if lock == nil {
		return nil, ErrLockHeld
	}
	defer func() {
		// Release must survive a cancelled job context.
		if err := s.locks.Release(context.WithoutCancel(ctx), lock); err != nil {
			s.log.Error().Err(err).Str("endpoint_id", ep.ID).Msg("releasing patch-locations lease failed")
		}
	}()

	// Taken before any work: the next delta run must not miss changes that
	// happen while this one is sweeping.
	startedOn := time.Now().UTC()

	// A delta without a baseline degenerates to a full push.
	if ep.LastPatchJobOn == nil {
		full = true
	}

	var candidates map[string]struct{}
	if !full {
		candidates = map[string]struct{}{}
		if ep.LastPatchJobResult != nil {
			for _, id := range ep.LastPatchJobResult.ChargeBoxIDsInFailure {
				candidates[id] = struct{}{}
			}
		}
		changed, err := s.notifications.ChargeBoxIDsSince(ctx, *ep.LastPatchJobOn)
		if err != nil {
			return nil, errors.Wrap(err, "listing changed charge boxes")
		}
		for _, id := range changed {
			candidates[id] = struct{}{}
		}
	}

	tree, err := s.locations.ListLocations(ctx)
	if err != nil {
		return nil, err
	}

	result := ocpi.NewJobResult()
	succeeded := map[string]struct{}{}
	failed := map[string]struct{}{}
	notified := false

	for _, loc := range tree {
		for _, evse := range loc.Evses {
			if !full {
				if _, ok := candidates[evse.ChargeBoxID]; !ok {
					continue
				}
			}
			if err := s.patchEvseStatus(ctx, ep, loc.ID, evse); err != nil {
				s.log.Warn().Err(err).Str("evse_uid", evse.UID).Msg("evse status patch failed")
				result.RecordFailure(evse.ChargeBoxID, err)
				failed[evse.ChargeBoxID] = struct{}{}
			} else {
				result.RecordSuccess(evse.ChargeBoxID)
				succeeded[evse.ChargeBoxID] = struct{}{}
			}
			if result.Failure > 0 && !notified && s.notifier != nil {
				s.notifier.NotifyPatchFailure(ep.Name, loc.ID)
				notified = true
			}
		}
	}

	snap := models.PatchJobSnapshot{
		SuccessCount:          result.Success,
		FailureCount:          result.Failure,
		TotalCount:            result.Total,
		ChargeBoxIDsInSuccess: sortedKeys(succeeded),
		ChargeBoxIDsInFailure: sortedKeys(failed),
	}
	if err := s.endpoints.SavePatchJobSnapshot(ctx, ep.ID, startedOn, snap); err != nil {
		return result, errors.Wrap(err, "saving patch job snapshot")
	}
	ep.LastPatchJobOn = &startedOn
	ep.LastPatchJobResult = &snap

	return result, nil
}

func (s *StatusService) patchEvseStatus(ctx context.Context, ep *models.Endpoint, locationID string, evse ocpi.Evse) error {
	url := fmt.Sprintf("%s/%s/%s/%s/%s", ep.LocationsURL, ep.CountryCode, ep.PartyID, locationID, evse.UID)
	_, err := s.client.Do(ctx, http.MethodPatch, url, ep.Token, ocpi.EvseStatusUpdate{
		Status:      evse.Status,
		LastUpdated: time.Now().UTC(),
	})
	return err
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
