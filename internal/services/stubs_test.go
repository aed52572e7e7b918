package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"ocpisync/internal/models"
)

type stubTokenStore struct {
	mu      sync.Mutex
	upserts []models.Token
	failUID string
}

func (s *stubTokenStore) Upsert(_ context.Context, t models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUID != "" && t.UID == s.failUID {
		return errors.New("storage unavailable")
	}
	s.upserts = append(s.upserts, t)
	return nil
}

type stubEndpointStore struct {
	savedOn   time.Time
	savedSnap models.PatchJobSnapshot
	saves     int
}

func (s *stubEndpointStore) SavePatchJobSnapshot(_ context.Context, _ string, on time.Time, snap models.PatchJobSnapshot) error {
	s.savedOn = on
	s.savedSnap = snap
	s.saves++
	return nil
}

type stubTransactionStore struct {
	txs         map[int]*models.Transaction
	meterValues map[int][]models.MeterValue
	toCheck     []models.Transaction
	saves       int
}

func (s *stubTransactionStore) GetByID(_ context.Context, id int) (*models.Transaction, error) {
	return s.txs[id], nil
}

func (s *stubTransactionStore) SaveOCPIData(_ context.Context, t *models.Transaction) error {
	s.saves++
	t.Version++
	return nil
}

func (s *stubTransactionStore) ListMeterValues(_ context.Context, id int) ([]models.MeterValue, error) {
	return s.meterValues[id], nil
}

func (s *stubTransactionStore) ListToCheckSessions(_ context.Context, _ int) ([]models.Transaction, error) {
	return s.toCheck, nil
}

func (s *stubTransactionStore) ListToCheckCdrs(_ context.Context, _ int) ([]models.Transaction, error) {
	return s.toCheck, nil
}

type stubStationStore struct {
	byID       map[string]*models.ChargingStation
	bySiteArea map[string][]models.ChargingStation
}

func (s *stubStationStore) Get(_ context.Context, id string) (*models.ChargingStation, error) {
	return s.byID[id], nil
}

func (s *stubStationStore) ListBySiteArea(_ context.Context, siteAreaID string) ([]models.ChargingStation, error) {
	return s.bySiteArea[siteAreaID], nil
}

type stubSiteStore struct {
	sites map[string]*models.Site
	areas map[string]*models.SiteArea
	list  []models.SiteArea
}

func (s *stubSiteStore) GetSite(_ context.Context, id string) (*models.Site, error) {
	return s.sites[id], nil
}

func (s *stubSiteStore) GetSiteArea(_ context.Context, id string) (*models.SiteArea, error) {
	return s.areas[id], nil
}

func (s *stubSiteStore) ListSiteAreas(_ context.Context) ([]models.SiteArea, error) {
	return s.list, nil
}

type stubNotificationStore struct {
	ids   []string
	since time.Time
}

func (s *stubNotificationStore) ChargeBoxIDsSince(_ context.Context, since time.Time) ([]string, error) {
	s.since = since
	return s.ids, nil
}

type stubAuthorizationStore struct {
	latest *models.RemoteAuthorization
	saved  []models.RemoteAuthorization
}

func (s *stubAuthorizationStore) GetLatestByTag(_ context.Context, _ string) (*models.RemoteAuthorization, error) {
	return s.latest, nil
}

func (s *stubAuthorizationStore) Save(_ context.Context, ra models.RemoteAuthorization) error {
	s.saved = append(s.saved, ra)
	return nil
}

type stubLockStore struct {
	mu       sync.Mutex
	held     bool
	acquired int
	released int
}

func (s *stubLockStore) TryAcquire(_ context.Context, endpointID, action string, ttl time.Duration) (*models.JobLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held {
		return nil, nil
	}
	s.held = true
	s.acquired++
	return &models.JobLock{EndpointID: endpointID, Action: action, Holder: "test", ExpiresAt: time.Now().Add(ttl)}, nil
}

func (s *stubLockStore) Release(_ context.Context, _ *models.JobLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = false
	s.released++
	return nil
}

type stubNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubNotifier) NotifyPatchFailure(endpointName, locationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, endpointName+"/"+locationID)
}
