package services

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"ocpisync/internal/models"
	"ocpisync/internal/ocpi"
)

// CdrService posts billing records and reconciles them against the remote
// system. A CDR the partner lost is resubmitted; that is the only
// auto-repair in the engine.
type CdrService struct {
	client       *ocpi.Client
	transactions TransactionStore
	log          zerolog.Logger
}

func NewCdrService(client *ocpi.Client, transactions TransactionStore, log zerolog.Logger) *CdrService {
	return &CdrService{client: client, transactions: transactions, log: log}
}

// PostCdr derives the CDR from the completed session plus local billing
// totals and submits it once.
func (s *CdrService) PostCdr(ctx context.Context, ep *models.Endpoint, t *models.Transaction) error {
	session, err := startedSession(t)
	if err != nil {
		return err
	}
	if session.Status != ocpi.SessionCompleted {
		return errors.Wrapf(ErrPrecondition, "session of transaction %d is not completed", t.ID)
	}
	if !t.Stopped() {
		return errors.Wrapf(ErrPrecondition, "transaction %d has not stopped", t.ID)
	}

	cdr := buildCdr(session, t)
	if _, err := s.client.Do(ctx, http.MethodPost, ep.CdrsURL, ep.Token, cdr); err != nil {
		return err
	}

	t.OCPI.Cdr = cdr
	return errors.Wrapf(s.transactions.SaveOCPIData(ctx, t), "saving cdr of transaction %d", t.ID)
}

// CheckCdr fetches the remote copy of the CDR. The partner reporting the
// record unknown triggers one resubmission and a "not yet confirmed"
// outcome, not an error; reconciliation will look again next sweep.
func (s *CdrService) CheckCdr(ctx context.Context, ep *models.Endpoint, t *models.Transaction) (bool, error) {
	if t == nil || t.OCPI == nil || t.OCPI.Cdr == nil {
		return false, errors.Wrap(ErrPrecondition, "transaction has no posted cdr")
	}
	cdr := t.OCPI.Cdr

	res, err := s.client.Do(ctx, http.MethodGet, fmt.Sprintf("%s/%s", ep.CdrsURL, cdr.ID), ep.Token, nil)
	if err != nil {
		return false, err
	}

	if res.StatusCode == ocpi.StatusCodeUnknownObject {
		s.log.Info().Str("cdr_id", cdr.ID).Int("transaction_id", t.ID).
			Msg("cdr unknown to remote, resubmitting")
		if _, err := s.client.Do(ctx, http.MethodPost, ep.CdrsURL, ep.Token, cdr); err != nil {
			return false, errors.Wrapf(err, "resubmitting cdr %s", cdr.ID)
		}
		return false, nil
	}

	if res.StatusCode != ocpi.StatusCodeSuccess || len(res.Data) == 0 {
		return false, errors.Errorf("cdr %s not confirmed by remote: status_code %d", cdr.ID, res.StatusCode)
	}
	var remote ocpi.CDR
	if err := res.Bind(&remote); err != nil {
		return false, errors.Wrapf(err, "malformed cdr %s in remote response", cdr.ID)
	}

	now := time.Now().UTC()
	t.OCPI.CdrCheckedOn = &now
	if err := s.transactions.SaveOCPIData(ctx, t); err != nil {
		return false, errors.Wrapf(err, "saving check of transaction %d", t.ID)
	}
	return true, nil
}

// CheckCdrs sweeps all transactions with an unverified CDR. An unconfirmed
// (resubmitted) CDR counts as neither success nor failure.
func (s *CdrService) CheckCdrs(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error) {
	txs, err := s.transactions.ListToCheckCdrs(ctx, 0)
	if err != nil {
		return nil, errors.Wrap(err, "listing cdrs to check")
	}

	result := ocpi.NewJobResult()
	for i := range txs {
		t := &txs[i]
		confirmed, err := s.CheckCdr(ctx, ep, t)
		if err != nil {
			s.log.Warn().Err(err).Int("transaction_id", t.ID).Msg("cdr check failed")
			result.RecordFailure(transactionObjectID(t.ID), err)
			continue
		}
		if !confirmed {
			result.RecordSkip()
			result.Logf("%d: cdr resubmitted, not yet confirmed", t.ID)
			continue
		}
		result.RecordSuccess(transactionObjectID(t.ID))
	}
	return result, nil
}

func buildCdr(session *ocpi.Session, t *models.Transaction) *ocpi.CDR {
	cost := t.Price
	if cost < 0 {
		cost = 0
	}
	return &ocpi.CDR{
		ID:               session.ID,
		StartDateTime:    session.StartDatetime,
		StopDateTime:     t.StoppedAt,
		AuthID:           session.AuthID,
		AuthMethod:       session.AuthMethod,
		Location:         session.Location,
		Currency:         t.PriceUnit,
		TotalCost:        cost,
		TotalEnergy:      WhToKwh(t.TotalConsumptionWh),
		TotalTime:        roundHours(t.TotalDurationSecs),
		TotalParkingTime: roundHours(t.TotalParkingSecs),
		ChargingPeriods:  session.ChargingPeriods,
		LastUpdated:      time.Now().UTC(),
	}
}

func roundHours(secs int64) float64 {
	return math.Round(float64(secs)/3600*1000) / 1000
}
