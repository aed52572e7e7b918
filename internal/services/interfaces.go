package services

import (
	"context"
	"time"

	"ocpisync/internal/models"
)

// Collaborator interfaces consumed by the sync services. The repo package
// satisfies all of them; tests substitute stubs.

type EndpointStore interface {
	SavePatchJobSnapshot(ctx context.Context, endpointID string, on time.Time, snap models.PatchJobSnapshot) error
}

type TokenStore interface {
	Upsert(ctx context.Context, t models.Token) error
}

type TransactionStore interface {
	GetByID(ctx context.Context, id int) (*models.Transaction, error)
	SaveOCPIData(ctx context.Context, t *models.Transaction) error
	ListMeterValues(ctx context.Context, transactionID int) ([]models.MeterValue, error)
	ListToCheckSessions(ctx context.Context, limit int) ([]models.Transaction, error)
	ListToCheckCdrs(ctx context.Context, limit int) ([]models.Transaction, error)
}

type StationStore interface {
	Get(ctx context.Context, id string) (*models.ChargingStation, error)
	ListBySiteArea(ctx context.Context, siteAreaID string) ([]models.ChargingStation, error)
}

type SiteStore interface {
	GetSite(ctx context.Context, id string) (*models.Site, error)
	GetSiteArea(ctx context.Context, id string) (*models.SiteArea, error)
	ListSiteAreas(ctx context.Context) ([]models.SiteArea, error)
}

type StatusNotificationStore interface {
	ChargeBoxIDsSince(ctx context.Context, since time.Time) ([]string, error)
}

type AuthorizationStore interface {
	GetLatestByTag(ctx context.Context, tagID string) (*models.RemoteAuthorization, error)
	Save(ctx context.Context, ra models.RemoteAuthorization) error
}

type LockStore interface {
	TryAcquire(ctx context.Context, endpointID, action string, ttl time.Duration) (*models.JobLock, error)
	Release(ctx context.Context, lock *models.JobLock) error
}

// Notifier delivers best-effort operator notifications; implementations
// must never block the job or return an error.
type Notifier interface {
	NotifyPatchFailure(endpointName, locationID string)
}
