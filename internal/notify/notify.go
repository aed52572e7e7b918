package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// WebhookNotifier posts operator notifications to a configured URL. It is
// best-effort: delivery runs detached from the job, failures are logged and
// never retried.
type WebhookNotifier struct {
	URL  string
	HTTP *http.Client
	Log  zerolog.Logger
}

func NewWebhookNotifier(url string, log zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		URL:  url,
		HTTP: &http.Client{Timeout: 10 * time.Second},
		Log:  log,
	}
}

func (n *WebhookNotifier) NotifyPatchFailure(endpointName, locationID string) {
	if n.URL == "" {
		return
	}
	body, _ := json.Marshal(map[string]string{
		"event":    "ocpi.patch_statuses_failed",
		"endpoint": endpointName,
		"location": locationID,
	})
	go n.post(body)
}

func (n *WebhookNotifier) post(body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		n.Log.Warn().Err(err).Msg("building notification request failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.HTTP.Do(req)
	if err != nil {
		n.Log.Warn().Err(err).Msg("operator notification not delivered")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.Log.Warn().Int("status", resp.StatusCode).Msg("operator notification rejected")
	}
}
