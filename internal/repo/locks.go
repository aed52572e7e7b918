package repo

import (
	"context"
	"time"

	"ocpisync/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LocksRepo implements the job-lock lease on the shared Postgres store, so
// every instance pointed at the same database contends on the same rows.
type LocksRepo struct{ db *pgxpool.Pool }

func NewLocksRepo(db *pgxpool.Pool) *LocksRepo { return &LocksRepo{db: db} }

// TryAcquire takes the (endpoint, action) lease if it is free or expired.
// Returns nil without error when another holder has it; callers skip the
// run in that case rather than waiting.
func (r *LocksRepo) TryAcquire(ctx context.Context, endpointID, action string, ttl time.Duration) (*models.JobLock, error) {
	lock := models.JobLock{
		EndpointID: endpointID,
		Action:     action,
		Holder:     uuid.NewString(),
		ExpiresAt:  time.Now().UTC().Add(ttl),
	}
	tag, err := r.db.Exec(ctx, `
		insert into ocpi_job_locks (endpoint_id, action, holder, expires_at)
		values ($1,$2,$3,$4)
		on conflict (endpoint_id, action) do update set
		  holder=excluded.holder,
		  expires_at=excluded.expires_at
		where ocpi_job_locks.expires_at < now()
	`, lock.EndpointID, lock.Action, lock.Holder, lock.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return &lock, nil
}

// Release deletes the lease only if this holder still owns it, so a lease
// stolen after expiry is never removed by the original owner.
func (r *LocksRepo) Release(ctx context.Context, lock *models.JobLock) error {
	if lock == nil {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		delete from ocpi_job_locks where endpoint_id=$1 and action=$2 and holder=$3
	`, lock.EndpointID, lock.Action, lock.Holder)
	return err
}
