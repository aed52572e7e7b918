package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StatusNotificationsRepo struct{ db *pgxpool.Pool }

func NewStatusNotificationsRepo(db *pgxpool.Pool) *StatusNotificationsRepo {
	return &StatusNotificationsRepo{db: db}
}

// ChargeBoxIDsSince lists the distinct charge boxes with a connector status
// change recorded after the given instant. Used for delta broadcasts.
func (r *StatusNotificationsRepo) ChargeBoxIDsSince(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		select distinct charge_box_id from status_notifications where ts > $1
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
