package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"ocpisync/internal/models"
	"ocpisync/internal/ocpi"
)

// partialPullWindow is how far back a partial token pull reaches. Running
// the job at least once per window cannot miss an update.
const partialPullWindow = 24 * time.Hour

type TokenService struct {
	client   *ocpi.Client
	tokens   TokenStore
	pageSize int
	log      zerolog.Logger
}

func NewTokenService(client *ocpi.Client, tokens TokenStore, pageSize int, log zerolog.Logger) *TokenService {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &TokenService{client: client, tokens: tokens, pageSize: pageSize, log: log}
}

// PullTokens walks the partner's token pages and upserts every token into
// local storage. A failed upsert marks the token in the result and the walk
// continues; a failed page fetch aborts, since later pages would be
// unreachable anyway.
func (s *TokenService) PullTokens(ctx context.Context, ep *models.Endpoint, partial bool) (*ocpi.JobResult, error) {
	if ep.TokensURL == "" {
		return nil, errors.Wrapf(ErrPrecondition, "endpoint %s has no tokens url", ep.Name)
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(s.pageSize))
	if partial {
		q.Set("date_from", time.Now().UTC().Add(-partialPullWindow).Format(time.RFC3339))
	}
	pageURL := ep.TokensURL + "?" + q.Encode()

	result := ocpi.NewJobResult()
	for pageURL != "" {
		res, err := s.client.Do(ctx, http.MethodGet, pageURL, ep.Token, nil)
		if err != nil {
			return result, err
		}
		if len(res.Data) == 0 {
			break
		}
		var page []ocpi.Token
		if err := res.Bind(&page); err != nil {
			return result, errors.Wrap(err, "decoding token page")
		}

		for _, tk := range page {
			if err := s.upsert(ctx, tk); err != nil {
				s.log.Warn().Err(err).Str("token_uid", tk.UID).Msg("token upsert failed")
				result.RecordFailure(tk.UID, err)
				continue
			}
			result.RecordSuccess(tk.UID)
		}
		pageURL = res.NextPage
	}
	return result, nil
}

func (s *TokenService) upsert(ctx context.Context, tk ocpi.Token) error {
	payload, err := json.Marshal(tk)
	if err != nil {
		return err
	}
	return s.tokens.Upsert(ctx, models.Token{
		UID:         tk.UID,
		AuthID:      tk.AuthID,
		Type:        tk.Type,
		Issuer:      tk.Issuer,
		Valid:       tk.Valid,
		LastUpdated: tk.LastUpdated,
		Payload:     payload,
	})
}
