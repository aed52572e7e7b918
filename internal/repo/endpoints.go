package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ocpisync/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EndpointsRepo struct{ db *pgxpool.Pool }

func NewEndpointsRepo(db *pgxpool.Pool) *EndpointsRepo { return &EndpointsRepo{db: db} }

const endpointCols = `endpoint_id, name, role, status, country_code, party_id, token,
	tokens_url, sessions_url, cdrs_url, locations_url,
	last_patch_job_on, last_patch_job_result, created_at, updated_at`

func (r *EndpointsRepo) Get(ctx context.Context, id string) (*models.Endpoint, error) {
	row := r.db.QueryRow(ctx, `select `+endpointCols+` from ocpi_endpoints where endpoint_id=$1`, id)
	return scanEndpoint(row)
}

func (r *EndpointsRepo) ListRegistered(ctx context.Context) ([]models.Endpoint, error) {
	rows, err := r.db.Query(ctx, `select `+endpointCols+` from ocpi_endpoints where status=$1 order by name`, models.EndpointRegistered)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Endpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *EndpointsRepo) Upsert(ctx context.Context, e models.Endpoint) (string, error) {
	row := r.db.QueryRow(ctx, `
		insert into ocpi_endpoints (name, role, status, country_code, party_id, token,
		  tokens_url, sessions_url, cdrs_url, locations_url)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		on conflict (name) do update set
		  role=excluded.role,
		  status=excluded.status,
		  country_code=excluded.country_code,
		  party_id=excluded.party_id,
		  token=excluded.token,
		  tokens_url=excluded.tokens_url,
		  sessions_url=excluded.sessions_url,
		  cdrs_url=excluded.cdrs_url,
		  locations_url=excluded.locations_url,
		  updated_at=now()
		returning endpoint_id
	`, e.Name, e.Role, e.Status, e.CountryCode, e.PartyID, e.Token,
		e.TokensURL, e.SessionsURL, e.CdrsURL, e.LocationsURL)

	var id string
	if err := row.Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// SavePatchJobSnapshot stores the broadcast outcome and the run's start
// timestamp; the next delta run uses both.
func (r *EndpointsRepo) SavePatchJobSnapshot(ctx context.Context, endpointID string, on time.Time, snap models.PatchJobSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		update ocpi_endpoints set last_patch_job_on=$2, last_patch_job_result=$3, updated_at=now()
		where endpoint_id=$1
	`, endpointID, on, b)
	return err
}

func scanEndpoint(row pgx.Row) (*models.Endpoint, error) {
	var e models.Endpoint
	var snap []byte
	if err := row.Scan(&e.ID, &e.Name, &e.Role, &e.Status, &e.CountryCode, &e.PartyID, &e.Token,
		&e.TokensURL, &e.SessionsURL, &e.CdrsURL, &e.LocationsURL,
		&e.LastPatchJobOn, &snap, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(snap) > 0 {
		var s models.PatchJobSnapshot
		if err := json.Unmarshal(snap, &s); err != nil {
			return nil, err
		}
		e.LastPatchJobResult = &s
	}
	return &e, nil
}
