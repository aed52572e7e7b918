package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"ocpisync/internal/models"
	"ocpisync/internal/ocpi"
)

const authMethodRequest = "AUTH_REQUEST"

// SessionService drives the remote session through its one-directional
// state machine: PENDING on create, ACTIVE on first update, COMPLETED on
// stop.
type SessionService struct {
	client       *ocpi.Client
	transactions TransactionStore
	stations     StationStore
	locations    *LocationService
	log          zerolog.Logger
}

func NewSessionService(client *ocpi.Client, transactions TransactionStore, stations StationStore, locations *LocationService, log zerolog.Logger) *SessionService {
	return &SessionService{client: client, transactions: transactions, stations: stations, locations: locations, log: log}
}

func sessionURL(ep *models.Endpoint, sessionID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", ep.SessionsURL, ep.CountryCode, ep.PartyID, sessionID)
}

// StartSession creates the remote session at its authorization id. PUT at a
// known id makes a replayed create harmless.
func (s *SessionService) StartSession(ctx context.Context, ep *models.Endpoint, t *models.Transaction) error {
	if t == nil {
		return errors.Wrap(ErrPrecondition, "transaction is required")
	}
	if t.AuthorizationID == "" {
		return errors.Wrapf(ErrPrecondition, "transaction %d has no authorization id", t.ID)
	}

	station, err := s.stations.Get(ctx, t.ChargeBoxID)
	if err != nil {
		return errors.Wrapf(err, "loading charging station %s", t.ChargeBoxID)
	}
	if station == nil {
		return errors.Wrapf(ErrPrecondition, "charging station %s not found", t.ChargeBoxID)
	}
	loc, err := s.locations.SessionLocation(ctx, station, t.ConnectorID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	session := &ocpi.Session{
		ID:            t.AuthorizationID,
		StartDatetime: t.StartedAt,
		Kwh:           0,
		AuthID:        t.AuthorizationID,
		AuthMethod:    authMethodRequest,
		Location:      loc,
		Currency:      t.PriceUnit,
		TotalCost:     0,
		Status:        ocpi.SessionPending,
		LastUpdated:   now,
	}

	if _, err := s.client.Do(ctx, http.MethodPut, sessionURL(ep, session.ID), ep.Token, session); err != nil {
		return err
	}

	if t.OCPI == nil {
		t.OCPI = &models.TransactionOCPIData{}
	}
	t.OCPI.Session = session
	return errors.Wrapf(s.transactions.SaveOCPIData(ctx, t), "saving session of transaction %d", t.ID)
}

// UpdateSession recomputes the mutable fields from local transaction state
// and patches only those; mid-session refreshes are frequent, so the
// payload stays small.
func (s *SessionService) UpdateSession(ctx context.Context, ep *models.Endpoint, t *models.Transaction) error {
	session, err := startedSession(t)
	if err != nil {
		return err
	}

	periods, err := s.chargingPeriods(ctx, t)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	session.Kwh = WhToKwh(t.TotalConsumptionWh)
	session.TotalCost = t.Price
	session.Currency = t.PriceUnit
	session.ChargingPeriods = periods
	session.Status = ocpi.SessionActive
	session.LastUpdated = now

	patch := ocpi.SessionUpdate{
		Kwh:             session.Kwh,
		ChargingPeriods: session.ChargingPeriods,
		Currency:        session.Currency,
		TotalCost:       session.TotalCost,
		Status:          session.Status,
		LastUpdated:     session.LastUpdated,
	}
	if _, err := s.client.Do(ctx, http.MethodPatch, sessionURL(ep, session.ID), ep.Token, patch); err != nil {
		return err
	}
	return errors.Wrapf(s.transactions.SaveOCPIData(ctx, t), "saving session of transaction %d", t.ID)
}

// StopSession finalizes the remote session. The terminal transition sends
// the full object: it happens once per session and a self-describing
// payload is worth more than a small one when the partner debugs it.
func (s *SessionService) StopSession(ctx context.Context, ep *models.Endpoint, t *models.Transaction) error {
	session, err := startedSession(t)
	if err != nil {
		return err
	}
	if !t.Stopped() {
		return errors.Wrapf(ErrPrecondition, "transaction %d has not stopped", t.ID)
	}

	periods, err := s.chargingPeriods(ctx, t)
	if err != nil {
		return err
	}

	session.EndDatetime = t.StoppedAt
	session.Kwh = WhToKwh(t.TotalConsumptionWh)
	session.TotalCost = t.Price
	session.Currency = t.PriceUnit
	session.ChargingPeriods = periods
	session.Status = ocpi.SessionCompleted
	session.LastUpdated = time.Now().UTC()

	if _, err := s.client.Do(ctx, http.MethodPut, sessionURL(ep, session.ID), ep.Token, session); err != nil {
		return err
	}
	return errors.Wrapf(s.transactions.SaveOCPIData(ctx, t), "saving session of transaction %d", t.ID)
}

// CheckSession verifies the remote system still holds the session and
// stamps the verification time locally.
func (s *SessionService) CheckSession(ctx context.Context, ep *models.Endpoint, t *models.Transaction) error {
	session, err := startedSession(t)
	if err != nil {
		return err
	}

	res, err := s.client.Do(ctx, http.MethodGet, sessionURL(ep, session.ID), ep.Token, nil)
	if err != nil {
		return err
	}
	if res.StatusCode != ocpi.StatusCodeSuccess || len(res.Data) == 0 {
		return errors.Errorf("session %s not confirmed by remote: status_code %d", session.ID, res.StatusCode)
	}
	var remote ocpi.Session
	if err := res.Bind(&remote); err != nil {
		return errors.Wrapf(err, "malformed session %s in remote response", session.ID)
	}

	now := time.Now().UTC()
	t.OCPI.SessionCheckedOn = &now
	return errors.Wrapf(s.transactions.SaveOCPIData(ctx, t), "saving check of transaction %d", t.ID)
}

// CheckSessions sweeps all transactions with an unverified session.
// Transactions still charging are counted but skipped; their session is a
// moving target.
func (s *SessionService) CheckSessions(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error) {
	txs, err := s.transactions.ListToCheckSessions(ctx, 0)
	if err != nil {
		return nil, errors.Wrap(err, "listing sessions to check")
	}

	result := ocpi.NewJobResult()
	for i := range txs {
		t := &txs[i]
		if !t.Stopped() {
			result.RecordSkip()
			continue
		}
		if err := s.CheckSession(ctx, ep, t); err != nil {
			s.log.Warn().Err(err).Int("transaction_id", t.ID).Msg("session check failed")
			result.RecordFailure(transactionObjectID(t.ID), err)
			continue
		}
		result.RecordSuccess(transactionObjectID(t.ID))
	}
	return result, nil
}

func startedSession(t *models.Transaction) (*ocpi.Session, error) {
	if t == nil {
		return nil, errors.Wrap(ErrPrecondition, "transaction is required")
	}
	if t.OCPI == nil || t.OCPI.Session == nil {
		return nil, errors.Wrapf(ErrPrecondition, "session not started for transaction %d", t.ID)
	}
	return t.OCPI.Session, nil
}

// chargingPeriods rebuilds the metered intervals from the transaction's
// samples. Sample values are cumulative, so each period carries the delta
// to the previous one.
func (s *SessionService) chargingPeriods(ctx context.Context, t *models.Transaction) ([]ocpi.ChargingPeriod, error) {
	samples, err := s.transactions.ListMeterValues(ctx, t.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing meter values of transaction %d", t.ID)
	}
	if len(samples) == 0 {
		if t.TotalConsumptionWh <= 0 {
			return nil, nil
		}
		return []ocpi.ChargingPeriod{{
			StartDateTime: t.StartedAt,
			Dimensions:    []ocpi.CdrDimension{{Type: "ENERGY", Volume: WhToKwh(t.TotalConsumptionWh)}},
		}}, nil
	}

	periods := make([]ocpi.ChargingPeriod, 0, len(samples))
	prevWh := int64(0)
	prevTs := t.StartedAt
	for _, sample := range samples {
		delta := sample.ValueWh - prevWh
		if delta < 0 {
			delta = 0
		}
		periods = append(periods, ocpi.ChargingPeriod{
			StartDateTime: prevTs,
			Dimensions:    []ocpi.CdrDimension{{Type: "ENERGY", Volume: WhToKwh(delta)}},
		})
		prevWh = sample.ValueWh
		prevTs = sample.Timestamp
	}
	return periods, nil
}

// WhToKwh converts accumulated watt-hours to kWh. Integer watt-hours keep
// the result exact to 3 decimals.
func WhToKwh(wh int64) float64 {
	return float64(wh) / 1000
}
