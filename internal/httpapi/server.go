package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ocpisync/internal/config"
	"ocpisync/internal/models"
	"ocpisync/internal/ocpi"
	"ocpisync/internal/repo"
	"ocpisync/internal/services"
)

// Server is the operator-facing admin API: provision endpoints, trigger
// jobs on demand, inspect the last broadcast snapshot. It parses, delegates
// and shapes JSON; the services own the behavior.
type Server struct {
	Cfg          config.Config
	Endpoints    *repo.EndpointsRepo
	Transactions *repo.TransactionsRepo
	Stations     *repo.StationsRepo
	Jobs         *services.JobService
	Tokens       *services.TokenService
	Auth         *services.AuthorizationService
	Statuses     *services.StatusService
	Cdrs         *services.CdrService
	Sessions     *services.SessionService
	Locations    *services.LocationService
	Log          zerolog.Logger
}

func NewServer(cfg config.Config, endpoints *repo.EndpointsRepo, transactions *repo.TransactionsRepo,
	stations *repo.StationsRepo, jobs *services.JobService, tokens *services.TokenService,
	auth *services.AuthorizationService, statuses *services.StatusService, cdrs *services.CdrService,
	sessions *services.SessionService, locations *services.LocationService, log zerolog.Logger) *Server {
	return &Server{
		Cfg: cfg, Endpoints: endpoints, Transactions: transactions, Stations: stations,
		Jobs: jobs, Tokens: tokens, Auth: auth, Statuses: statuses, Cdrs: cdrs,
		Sessions: sessions, Locations: locations, Log: log,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/v1/endpoints", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return RequireBearer(s.Cfg.AdminAPIKey, next) })
		r.Post("/", s.UpsertEndpoint)
		r.Get("/{endpointID}", s.GetEndpoint)
		r.Post("/{endpointID}/jobs/trigger", s.TriggerJobs)
		r.Post("/{endpointID}/jobs/pull-tokens", s.PullTokens)
		r.Post("/{endpointID}/jobs/send-statuses", s.SendStatuses)
		r.Post("/{endpointID}/jobs/check-cdrs", s.CheckCdrs)
		r.Post("/{endpointID}/jobs/check-sessions", s.CheckSessions)
		r.Post("/{endpointID}/jobs/check-locations", s.CheckLocations)

		r.Post("/{endpointID}/authorize", s.Authorize)
		r.Post("/{endpointID}/transactions/{transactionID}/start-session", s.StartSession)
		r.Post("/{endpointID}/transactions/{transactionID}/update-session", s.UpdateSession)
		r.Post("/{endpointID}/transactions/{transactionID}/stop-session", s.StopSession)
		r.Post("/{endpointID}/transactions/{transactionID}/post-cdr", s.PostCdr)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}

type upsertEndpointReq struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	Status       string `json:"status"`
	CountryCode  string `json:"countryCode"`
	PartyID      string `json:"partyId"`
	Token        string `json:"token"`
	TokensURL    string `json:"tokensUrl"`
	SessionsURL  string `json:"sessionsUrl"`
	CdrsURL      string `json:"cdrsUrl"`
	LocationsURL string `json:"locationsUrl"`
}

func (s *Server) UpsertEndpoint(w http.ResponseWriter, r *http.Request) {
	var req upsertEndpointReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.CountryCode == "" || req.PartyID == "" {
		http.Error(w, "missing name/countryCode/partyId", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = "CPO"
	}
	if req.Status == "" {
		req.Status = string(models.EndpointUnregistered)
	}

	id, err := s.Endpoints.Upsert(r.Context(), models.Endpoint{
		Name:         req.Name,
		Role:         req.Role,
		Status:       models.EndpointStatus(req.Status),
		CountryCode:  req.CountryCode,
		PartyID:      req.PartyID,
		Token:        req.Token,
		TokensURL:    req.TokensURL,
		SessionsURL:  req.SessionsURL,
		CdrsURL:      req.CdrsURL,
		LocationsURL: req.LocationsURL,
	})
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"endpointId": id})
}

func (s *Server) GetEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.loadEndpoint(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"endpointId":         ep.ID,
		"name":               ep.Name,
		"role":               ep.Role,
		"status":             ep.Status,
		"countryCode":        ep.CountryCode,
		"partyId":            ep.PartyID,
		"lastPatchJobOn":     ep.LastPatchJobOn,
		"lastPatchJobResult": ep.LastPatchJobResult,
	})
}

func (s *Server) TriggerJobs(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.loadEndpoint(w, r)
	if !ok {
		return
	}
	log := s.runLogger("trigger-jobs")
	report, err := s.Jobs.TriggerJobs(r.Context(), ep)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", ep.Name).Msg("trigger jobs finished with errors")
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) PullTokens(w http.ResponseWriter, r *http.Request) {
	s.runJob(w, r, "pull-tokens", func(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error) {
		return s.Tokens.PullTokens(ctx, ep, boolQuery(r, "partial"))
	})
}

func (s *Server) SendStatuses(w http.ResponseWriter, r *http.Request) {
	s.runJob(w, r, "send-statuses", func(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error) {
		return s.Statuses.SendEVSEStatuses(ctx, ep, boolQuery(r, "full"))
	})
}

func (s *Server) CheckCdrs(w http.ResponseWriter, r *http.Request) {
	s.runJob(w, r, "check-cdrs", func(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error) {
		return s.Cdrs.CheckCdrs(ctx, ep)
	})
}

func (s *Server) CheckSessions(w http.ResponseWriter, r *http.Request) {
	s.runJob(w, r, "check-sessions", func(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error) {
		return s.Sessions.CheckSessions(ctx, ep)
	})
}

func (s *Server) CheckLocations(w http.ResponseWriter, r *http.Request) {
	s.runJob(w, r, "check-locations", func(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error) {
		return s.Locations.CheckLocations(ctx, ep)
	})
}

func (s *Server) runJob(w http.ResponseWriter, r *http.Request, name string,
	run func(ctx context.Context, ep *models.Endpoint) (*ocpi.JobResult, error)) {
	ep, ok := s.loadEndpoint(w, r)
	if !ok {
		return
	}
	log := s.runLogger(name)

	result, err := run(r.Context(), ep)
	if err != nil {
		if errors.Is(err, services.ErrLockHeld) {
			http.Error(w, "job lock held", http.StatusConflict)
			return
		}
		log.Error().Err(err).Str("endpoint", ep.Name).Msg("job failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) loadEndpoint(w http.ResponseWriter, r *http.Request) (*models.Endpoint, bool) {
	id := chi.URLParam(r, "endpointID")
	ep, err := s.Endpoints.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return nil, false
	}
	if ep == nil {
		http.NotFound(w, r)
		return nil, false
	}
	return ep, true
}

func (s *Server) runLogger(job string) zerolog.Logger {
	return s.Log.With().Str("job", job).Str("run_id", uuid.NewString()).Logger()
}

func boolQuery(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
