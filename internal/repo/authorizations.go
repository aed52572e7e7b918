package repo

import (
	"context"
	"errors"

	"ocpisync/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuthorizationsRepo struct{ db *pgxpool.Pool }

func NewAuthorizationsRepo(db *pgxpool.Pool) *AuthorizationsRepo {
	return &AuthorizationsRepo{db: db}
}

// GetLatestByTag returns the most recent cached grant for a tag, fresh or
// not; the caller applies the freshness window.
func (r *AuthorizationsRepo) GetLatestByTag(ctx context.Context, tagID string) (*models.RemoteAuthorization, error) {
	row := r.db.QueryRow(ctx, `
		select id, tag_id, authorization_id, issued_at
		from remote_authorizations
		where tag_id=$1
		order by issued_at desc
		limit 1
	`, tagID)

	var ra models.RemoteAuthorization
	if err := row.Scan(&ra.ID, &ra.TagID, &ra.AuthorizationID, &ra.IssuedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ra, nil
}

func (r *AuthorizationsRepo) Save(ctx context.Context, ra models.RemoteAuthorization) error {
	_, err := r.db.Exec(ctx, `
		insert into remote_authorizations (tag_id, authorization_id, issued_at)
		values ($1,$2,$3)
	`, ra.TagID, ra.AuthorizationID, ra.IssuedAt)
	return err
}
