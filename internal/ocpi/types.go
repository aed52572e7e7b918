package ocpi

import "time"

// Envelope status codes used by the partner in response bodies.
const (
	StatusCodeSuccess       = 1000
	StatusCodeUnknownObject = 3001
)

type SessionStatus string

const (
	SessionPending   SessionStatus = "PENDING"
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionInvalid   SessionStatus = "INVALID"
)

type EvseStatus string

const (
	EvseAvailable   EvseStatus = "AVAILABLE"
	EvseBlocked     EvseStatus = "BLOCKED"
	EvseCharging    EvseStatus = "CHARGING"
	EvseInoperative EvseStatus = "INOPERATIVE"
	EvseOutOfOrder  EvseStatus = "OUTOFORDER"
	EvsePlanned     EvseStatus = "PLANNED"
	EvseRemoved     EvseStatus = "REMOVED"
	EvseReserved    EvseStatus = "RESERVED"
	EvseUnknown     EvseStatus = "UNKNOWN"
)

type AllowedType string

const (
	AllowedAllowed    AllowedType = "ALLOWED"
	AllowedBlocked    AllowedType = "BLOCKED"
	AllowedExpired    AllowedType = "EXPIRED"
	AllowedNoCredit   AllowedType = "NO_CREDIT"
	AllowedNotAllowed AllowedType = "NOT_ALLOWED"
)

type Token struct {
	UID          string    `json:"uid"`
	Type         string    `json:"type"`
	AuthID       string    `json:"auth_id"`
	VisualNumber string    `json:"visual_number,omitempty"`
	Issuer       string    `json:"issuer"`
	Valid        bool      `json:"valid"`
	Whitelist    string    `json:"whitelist,omitempty"`
	Language     string    `json:"language,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
}

type LocationReferences struct {
	LocationID string   `json:"location_id"`
	EvseUIDs   []string `json:"evse_uids,omitempty"`
}

type AuthorizationInfo struct {
	Allowed         AllowedType `json:"allowed"`
	AuthorizationID string      `json:"authorization_id,omitempty"`
	Info            string      `json:"info,omitempty"`
}

type Evse struct {
	UID         string     `json:"uid"`
	EvseID      string     `json:"evse_id,omitempty"`
	Status      EvseStatus `json:"status"`
	LastUpdated time.Time  `json:"last_updated"`

	// Local back-references, never sent on the wire.
	ChargeBoxID string `json:"-"`
	ConnectorID int    `json:"-"`
}

type Location struct {
	ID          string    `json:"id"`
	Type        string    `json:"type,omitempty"`
	Name        string    `json:"name,omitempty"`
	Address     string    `json:"address,omitempty"`
	City        string    `json:"city,omitempty"`
	Country     string    `json:"country,omitempty"`
	Evses       []Evse    `json:"evses,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

type CdrDimension struct {
	Type   string  `json:"type"`
	Volume float64 `json:"volume"`
}

type ChargingPeriod struct {
	StartDateTime time.Time      `json:"start_date_time"`
	Dimensions    []CdrDimension `json:"dimensions"`
}

type Session struct {
	ID              string           `json:"id"`
	StartDatetime   time.Time        `json:"start_datetime"`
	EndDatetime     *time.Time       `json:"end_datetime,omitempty"`
	Kwh             float64          `json:"kwh"`
	AuthID          string           `json:"auth_id"`
	AuthMethod      string           `json:"auth_method"`
	Location        *Location        `json:"location,omitempty"`
	Currency        string           `json:"currency,omitempty"`
	ChargingPeriods []ChargingPeriod `json:"charging_periods,omitempty"`
	TotalCost       float64          `json:"total_cost"`
	Status          SessionStatus    `json:"status"`
	LastUpdated     time.Time        `json:"last_updated"`
}

// SessionUpdate carries only the fields that change during a running
// session; it is the body of a PATCH.
type SessionUpdate struct {
	Kwh             float64          `json:"kwh"`
	ChargingPeriods []ChargingPeriod `json:"charging_periods,omitempty"`
	Currency        string           `json:"currency,omitempty"`
	TotalCost       float64          `json:"total_cost"`
	Status          SessionStatus    `json:"status"`
	LastUpdated     time.Time        `json:"last_updated"`
}

type CDR struct {
	ID               string           `json:"id"`
	StartDateTime    time.Time        `json:"start_date_time"`
	StopDateTime     *time.Time       `json:"stop_date_time,omitempty"`
	AuthID           string           `json:"auth_id"`
	AuthMethod       string           `json:"auth_method"`
	Location         *Location        `json:"location,omitempty"`
	Currency         string           `json:"currency,omitempty"`
	TotalCost        float64          `json:"total_cost"`
	TotalEnergy      float64          `json:"total_energy"`
	TotalTime        float64          `json:"total_time"`
	TotalParkingTime float64          `json:"total_parking_time,omitempty"`
	ChargingPeriods  []ChargingPeriod `json:"charging_periods,omitempty"`
	LastUpdated      time.Time        `json:"last_updated"`
}

type EvseStatusUpdate struct {
	Status      EvseStatus `json:"status"`
	LastUpdated time.Time  `json:"last_updated"`
}
