package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"ocpisync/internal/models"
	"ocpisync/internal/ocpi"
)

// JobsReport bundles the results of one full synchronization pass.
type JobsReport struct {
	Tokens   *ocpi.JobResult `json:"tokens,omitempty"`
	Statuses *ocpi.JobResult `json:"statuses,omitempty"`
	Cdrs     *ocpi.JobResult `json:"cdrs,omitempty"`
	Sessions *ocpi.JobResult `json:"sessions,omitempty"`
}

type JobService struct {
	tokens   *TokenService
	statuses *StatusService
	cdrs     *CdrService
	sessions *SessionService
	log      zerolog.Logger
}

func NewJobService(tokens *TokenService, statuses *StatusService, cdrs *CdrService, sessions *SessionService, log zerolog.Logger) *JobService {
	return &JobService{tokens: tokens, statuses: statuses, cdrs: cdrs, sessions: sessions, log: log}
}

// TriggerJobs runs a full synchronization pass. The jobs run in sequence,
// not concurrently: the status broadcast wants the freshest token-derived
// state, and the reconciliation sweeps are cheapest after the pushes have
// settled. One failed job does not stop the pass.
func (s *JobService) TriggerJobs(ctx context.Context, ep *models.Endpoint) (*JobsReport, error) {
	report := &JobsReport{}
	var errs []error

	var err error
	if report.Tokens, err = s.tokens.PullTokens(ctx, ep, false); err != nil {
		s.log.Error().Err(err).Str("endpoint", ep.Name).Msg("token pull failed")
		errs = append(errs, err)
	}

	if report.Statuses, err = s.statuses.SendEVSEStatuses(ctx, ep, true); err != nil {
		if errors.Is(err, ErrLockHeld) {
			s.log.Warn().Str("endpoint", ep.Name).Msg("status broadcast skipped, lease held elsewhere")
		} else {
			s.log.Error().Err(err).Str("endpoint", ep.Name).Msg("status broadcast failed")
			errs = append(errs, err)
		}
	}

	if report.Cdrs, err = s.cdrs.CheckCdrs(ctx, ep); err != nil {
		s.log.Error().Err(err).Str("endpoint", ep.Name).Msg("cdr check sweep failed")
		errs = append(errs, err)
	}

	if report.Sessions, err = s.sessions.CheckSessions(ctx, ep); err != nil {
		s.log.Error().Err(err).Str("endpoint", ep.Name).Msg("session check sweep failed")
		errs = append(errs, err)
	}

	return report, errors.Join(errs...)
}
