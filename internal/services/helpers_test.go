package services

import (
	"encoding/json"
	"net/http"
	"time"

	"ocpisync/internal/models"
)

func testEndpoint(base string) *models.Endpoint {
	return &models.Endpoint{
		ID:           "ep-1",
		Name:         "partner",
		Role:         "CPO",
		Status:       models.EndpointRegistered,
		CountryCode:  "DE",
		PartyID:      "ABC",
		Token:        "secret",
		TokensURL:    base + "/2.1.1/tokens",
		SessionsURL:  base + "/2.1.1/sessions",
		CdrsURL:      base + "/2.1.1/cdrs",
		LocationsURL: base + "/2.1.1/locations",
	}
}

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeEnvelope(w http.ResponseWriter, statusCode int, data any) {
	body := map[string]any{
		"status_code": statusCode,
		"timestamp":   time.Now().UTC(),
	}
	if data != nil {
		body["data"] = data
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
