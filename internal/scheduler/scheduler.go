package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"ocpisync/internal/config"
	"ocpisync/internal/models"
	"ocpisync/internal/ocpi"
	"ocpisync/internal/services"
)

type endpointLister interface {
	ListRegistered(ctx context.Context) ([]models.Endpoint, error)
}

// Service periodically runs the sync jobs for every registered endpoint.
// Each tick runs sequentially per endpoint; cross-instance exclusion is the
// job lock's problem, not the scheduler's.
type Service struct {
	cron      *cron.Cron
	endpoints endpointLister
	tokens    *services.TokenService
	statuses  *services.StatusService
	cdrs      *services.CdrService
	sessions  *services.SessionService
	locations *services.LocationService
	log       zerolog.Logger
}

func New(endpoints endpointLister, tokens *services.TokenService, statuses *services.StatusService,
	cdrs *services.CdrService, sessions *services.SessionService, locations *services.LocationService,
	log zerolog.Logger) *Service {
	return &Service{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		endpoints: endpoints,
		tokens:    tokens,
		statuses:  statuses,
		cdrs:      cdrs,
		sessions:  sessions,
		locations: locations,
		log:       log,
	}
}

func (s *Service) Start(cfg config.Config) error {
	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error)
	}{
		{"pull-tokens", cfg.PullTokensCron, func(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error) {
			return s.tokens.PullTokens(ctx, ep, true)
		}},
		{"send-statuses", cfg.SendStatusesCron, func(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error) {
			return s.statuses.SendEVSEStatuses(ctx, ep, false)
		}},
		{"check-cdrs", cfg.CheckCdrsCron, func(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error) {
			return s.cdrs.CheckCdrs(ctx, ep)
		}},
		{"check-sessions", cfg.CheckSessionsCron, func(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error) {
			return s.sessions.CheckSessions(ctx, ep)
		}},
		{"check-locations", cfg.CheckLocationsCron, func(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error) {
			return s.locations.CheckLocations(ctx, ep)
		}},
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { s.runForAllEndpoints(job.name, job.run) }); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Service) runForAllEndpoints(name string, run func(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error)) {
	ctx := context.Background()
	log := s.log.With().Str("job", name).Str("run_id", uuid.NewString()).Logger()

	endpoints, err := s.endpoints.ListRegistered(ctx)
	if err != nil {
		log.Error().Err(err).Msg("listing registered endpoints failed")
		return
	}

	for i := range endpoints {
		ep := &endpoints[i]
		result, err := run(ctx, ep)
		if err != nil {
			if errors.Is(err, services.ErrLockHeld) {
				log.Debug().Str("endpoint", ep.Name).Msg("skipped, lease held elsewhere")
				continue
			}
			log.Error().Err(err).Str("endpoint", ep.Name).Msg("job failed")
			continue
		}
		log.Info().Str("endpoint", ep.Name).
			Int("success", result.Success).Int("failure", result.Failure).Int("total", result.Total).
			Msg("job finished")
	}
}
