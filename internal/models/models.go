package models

import (
	"time"

	"ocpisync/internal/ocpi"
)

type EndpointStatus string

const (
	EndpointUnregistered EndpointStatus = "Unregistered"
	EndpointPending      EndpointStatus = "Pending"
	EndpointRegistered   EndpointStatus = "Registered"
)

// PatchJobSnapshot is the part of a status-broadcast JobResult that gets
// persisted on the endpoint; the next delta run reads it back to decide
// which charge boxes to retry.
type PatchJobSnapshot struct {
	SuccessCount          int      `json:"successCount"`
	FailureCount          int      `json:"failureCount"`
	TotalCount            int      `json:"totalCount"`
	ChargeBoxIDsInSuccess []string `json:"chargeBoxIDsInSuccess,omitempty"`
	ChargeBoxIDsInFailure []string `json:"chargeBoxIDsInFailure,omitempty"`
}

// Endpoint is one remote partner integration in the CPO role.
type Endpoint struct {
	ID          string
	Name        string
	Role        string
	Status      EndpointStatus
	CountryCode string
	PartyID     string
	Token       string

	TokensURL    string
	SessionsURL  string
	CdrsURL      string
	LocationsURL string

	LastPatchJobOn     *time.Time
	LastPatchJobResult *PatchJobSnapshot

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Token struct {
	UID         string
	AuthID      string
	Type        string
	Issuer      string
	Valid       bool
	LastUpdated time.Time
	Payload     []byte
}

// TransactionOCPIData is the remote-facing state carried by a local
// transaction: the session as last sent, the CDR once built, and the
// reconciliation timestamps.
type TransactionOCPIData struct {
	Session          *ocpi.Session `json:"session,omitempty"`
	SessionCheckedOn *time.Time    `json:"sessionCheckedOn,omitempty"`
	Cdr              *ocpi.CDR     `json:"cdr,omitempty"`
	CdrCheckedOn     *time.Time    `json:"cdrCheckedOn,omitempty"`
}

type Transaction struct {
	ID              int
	ChargeBoxID     string
	ConnectorID     int
	TagID           string
	AuthorizationID string

	StartedAt          time.Time
	StoppedAt          *time.Time
	MeterStartWh       int64
	TotalConsumptionWh int64
	TotalDurationSecs  int64
	TotalParkingSecs   int64
	Price              float64
	PriceUnit          string

	OCPI *TransactionOCPIData

	// Version guards concurrent writers of the OCPI data (a lifecycle
	// call racing a reconciliation sweep).
	Version int64
}

// Stopped reports whether the local charging transaction has ended.
func (t *Transaction) Stopped() bool { return t.StoppedAt != nil }

type MeterValue struct {
	TransactionID int
	Timestamp     time.Time
	// Cumulative consumption since transaction start.
	ValueWh int64
}

type Site struct {
	ID      string
	Name    string
	Address string
	City    string
	Country string
}

type SiteArea struct {
	ID     string
	SiteID string
	Name   string
}

type Connector struct {
	ID     int
	Status string
}

type ChargingStation struct {
	ID         string
	SiteAreaID string
	Inactive   bool
	Connectors []Connector
	LastSeenAt *time.Time
}

type StatusNotification struct {
	ID          int64
	ChargeBoxID string
	ConnectorID int
	Status      string
	ErrorCode   string
	Timestamp   time.Time
}

// RemoteAuthorization is a cached real-time authorization grant; it is only
// reusable within a freshness window from IssuedAt.
type RemoteAuthorization struct {
	ID              string
	TagID           string
	AuthorizationID string
	IssuedAt        time.Time
}

// JobLock is a held lease on (endpoint, action). Release deletes it by
// holder so an expired lease stolen by another instance is never removed
// by the original owner.
type JobLock struct {
	EndpointID string
	Action     string
	Holder     string
	ExpiresAt  time.Time
}
