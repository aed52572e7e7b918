package repo

import (
	"context"
	"errors"

	"ocpisync/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StationsRepo struct{ db *pgxpool.Pool }

func NewStationsRepo(db *pgxpool.Pool) *StationsRepo { return &StationsRepo{db: db} }

func (r *StationsRepo) Get(ctx context.Context, id string) (*models.ChargingStation, error) {
	row := r.db.QueryRow(ctx, `
		select charge_box_id, coalesce(site_area_id,''), inactive, last_seen_at
		from charging_stations where charge_box_id=$1
	`, id)

	var s models.ChargingStation
	if err := row.Scan(&s.ID, &s.SiteAreaID, &s.Inactive, &s.LastSeenAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.loadConnectors(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StationsRepo) ListBySiteArea(ctx context.Context, siteAreaID string) ([]models.ChargingStation, error) {
	rows, err := r.db.Query(ctx, `
		select charge_box_id, coalesce(site_area_id,''), inactive, last_seen_at
		from charging_stations where site_area_id=$1
		order by charge_box_id
	`, siteAreaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChargingStation
	for rows.Next() {
		var s models.ChargingStation
		if err := rows.Scan(&s.ID, &s.SiteAreaID, &s.Inactive, &s.LastSeenAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadConnectors(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *StationsRepo) loadConnectors(ctx context.Context, s *models.ChargingStation) error {
	rows, err := r.db.Query(ctx, `
		select connector_id, status from connectors
		where charge_box_id=$1 order by connector_id asc
	`, s.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Connector
		if err := rows.Scan(&c.ID, &c.Status); err != nil {
			return err
		}
		s.Connectors = append(s.Connectors, c)
	}
	return rows.Err()
}
