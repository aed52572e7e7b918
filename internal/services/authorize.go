package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"ocpisync/internal/models"
	"ocpisync/internal/ocpi"
)

type AuthorizationService struct {
	client         *ocpi.Client
	authorizations AuthorizationStore
	sites          SiteStore
	cacheTTL       time.Duration
	log            zerolog.Logger
}

func NewAuthorizationService(client *ocpi.Client, authorizations AuthorizationStore, sites SiteStore, cacheTTL time.Duration, log zerolog.Logger) *AuthorizationService {
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	return &AuthorizationService{client: client, authorizations: authorizations, sites: sites, cacheTTL: cacheTTL, log: log}
}

// Authorize resolves the authorization id for a presented token. A fresh
// cached grant short-circuits the remote call; repeated plug-in attempts
// must not hammer the partner.
func (s *AuthorizationService) Authorize(ctx context.Context, ep *models.Endpoint, tagID string, station *models.ChargingStation, connectorID int) (string, error) {
	if tagID == "" {
		return "", errors.Wrap(ErrPrecondition, "tag id is required")
	}
	if station == nil {
		return "", errors.Wrap(ErrPrecondition, "charging station is required")
	}

	cached, err := s.authorizations.GetLatestByTag(ctx, tagID)
	if err != nil {
		return "", errors.Wrap(err, "loading cached authorization")
	}
	if cached != nil && time.Since(cached.IssuedAt) < s.cacheTTL {
		s.log.Debug().Str("tag_id", tagID).Str("authorization_id", cached.AuthorizationID).
			Msg("reusing cached remote authorization")
		return cached.AuthorizationID, nil
	}

	if station.SiteAreaID == "" {
		return "", errors.Wrapf(ErrPrecondition, "charging station %s is not assigned to a site area", station.ID)
	}
	area, err := s.sites.GetSiteArea(ctx, station.SiteAreaID)
	if err != nil {
		return "", errors.Wrapf(err, "loading site area %s", station.SiteAreaID)
	}
	if area == nil {
		return "", errors.Wrapf(ErrPrecondition, "site area %s not found", station.SiteAreaID)
	}

	url := fmt.Sprintf("%s/%s/authorize", ep.TokensURL, tagID)
	body := ocpi.LocationReferences{
		LocationID: area.ID,
		EvseUIDs:   []string{EvseUID(station.ID, connectorID)},
	}
	res, err := s.client.Do(ctx, http.MethodPost, url, ep.Token, body)
	if err != nil {
		return "", err
	}

	var info ocpi.AuthorizationInfo
	if err := res.Bind(&info); err != nil {
		return "", errors.Wrapf(err, "malformed authorize response for tag %s", tagID)
	}
	if info.Allowed != ocpi.AllowedAllowed {
		return "", errors.Wrapf(ErrAuthorizationRejected, "tag %s: allowed=%s", tagID, info.Allowed)
	}
	if info.AuthorizationID == "" {
		return "", errors.Errorf("authorize response for tag %s reports ALLOWED without an authorization_id", tagID)
	}

	if err := s.authorizations.Save(ctx, models.RemoteAuthorization{
		TagID:           tagID,
		AuthorizationID: info.AuthorizationID,
		IssuedAt:        time.Now().UTC(),
	}); err != nil {
		return "", errors.Wrap(err, "caching remote authorization")
	}
	return info.AuthorizationID, nil
}
