package repo

import (
	"context"
	"errors"

	"ocpisync/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokensRepo struct{ db *pgxpool.Pool }

func NewTokensRepo(db *pgxpool.Pool) *TokensRepo { return &TokensRepo{db: db} }

func (r *TokensRepo) Upsert(ctx context.Context, t models.Token) error {
	_, err := r.db.Exec(ctx, `
		insert into ocpi_tokens (uid, auth_id, type, issuer, valid, last_updated, payload)
		values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (uid) do update set
		  auth_id=excluded.auth_id,
		  type=excluded.type,
		  issuer=excluded.issuer,
		  valid=excluded.valid,
		  last_updated=excluded.last_updated,
		  payload=excluded.payload,
		  updated_at=now()
	`, t.UID, t.AuthID, t.Type, t.Issuer, t.Valid, t.LastUpdated, t.Payload)
	return err
}

func (r *TokensRepo) Get(ctx context.Context, uid string) (*models.Token, error) {
	row := r.db.QueryRow(ctx, `
		select uid, auth_id, type, issuer, valid, last_updated, payload
		from ocpi_tokens where uid=$1
	`, uid)

	var t models.Token
	if err := row.Scan(&t.UID, &t.AuthID, &t.Type, &t.Issuer, &t.Valid, &t.LastUpdated, &t.Payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
