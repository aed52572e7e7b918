package repo

import (
	"context"
	"errors"

	"ocpisync/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SitesRepo struct{ db *pgxpool.Pool }

func NewSitesRepo(db *pgxpool.Pool) *SitesRepo { return &SitesRepo{db: db} }

func (r *SitesRepo) GetSite(ctx context.Context, id string) (*models.Site, error) {
	row := r.db.QueryRow(ctx, `select site_id, name, address, city, country from sites where site_id=$1`, id)
	var s models.Site
	if err := row.Scan(&s.ID, &s.Name, &s.Address, &s.City, &s.Country); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SitesRepo) GetSiteArea(ctx context.Context, id string) (*models.SiteArea, error) {
	row := r.db.QueryRow(ctx, `select site_area_id, site_id, name from site_areas where site_area_id=$1`, id)
	var sa models.SiteArea
	if err := row.Scan(&sa.ID, &sa.SiteID, &sa.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sa, nil
}

func (r *SitesRepo) ListSiteAreas(ctx context.Context) ([]models.SiteArea, error) {
	rows, err := r.db.Query(ctx, `select site_area_id, site_id, name from site_areas order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SiteArea
	for rows.Next() {
		var sa models.SiteArea
		if err := rows.Scan(&sa.ID, &sa.SiteID, &sa.Name); err != nil {
			return nil, err
		}
		out = append(out, sa)
	}
	return out, rows.Err()
}
