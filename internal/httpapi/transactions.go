package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ocpisync/internal/models"
	"ocpisync/internal/services"
)

// Synchronous operations tied to one charging-transaction event. Errors
// propagate to the caller: a failed authorize or session push must fail the
// surrounding action visibly.

type authorizeReq struct {
	TagID       string `json:"tagId"`
	ChargeBoxID string `json:"chargeBoxId"`
	ConnectorID int    `json:"connectorId"`
}

func (s *Server) Authorize(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.loadEndpoint(w, r)
	if !ok {
		return
	}
	var req authorizeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	station, err := s.Stations.Get(r.Context(), req.ChargeBoxID)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	authID, err := s.Auth.Authorize(r.Context(), ep, req.TagID, station, req.ConnectorID)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"authorizationId": authID})
}

func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	s.runTransactionOp(w, r, s.Sessions.StartSession)
}

func (s *Server) UpdateSession(w http.ResponseWriter, r *http.Request) {
	s.runTransactionOp(w, r, s.Sessions.UpdateSession)
}

func (s *Server) StopSession(w http.ResponseWriter, r *http.Request) {
	s.runTransactionOp(w, r, s.Sessions.StopSession)
}

func (s *Server) PostCdr(w http.ResponseWriter, r *http.Request) {
	s.runTransactionOp(w, r, s.Cdrs.PostCdr)
}

func (s *Server) runTransactionOp(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, ep *models.Endpoint, t *models.Transaction) error) {
	ep, ok := s.loadEndpoint(w, r)
	if !ok {
		return
	}
	txID, err := strconv.Atoi(chi.URLParam(r, "transactionID"))
	if err != nil {
		http.Error(w, "invalid transaction id", http.StatusBadRequest)
		return
	}
	t, err := s.Transactions.GetByID(r.Context(), txID)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	if t == nil {
		http.NotFound(w, r)
		return
	}

	if err := op(r.Context(), ep, t); err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactionId": t.ID, "ok": true})
}

func (s *Server) writeOperationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPrecondition):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, services.ErrAuthorizationRejected):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}
