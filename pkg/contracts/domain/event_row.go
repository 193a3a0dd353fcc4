package domain

import "time"

// Raw field names shared by every event source
const (
	SIDField       = "sid"
	TimestampField = "timestamp"
	EventDateField = "event_date"
)

// Dataset-specific payload field names
const (
	AnnouncementDateField = "announcement_date"

	BuybackDateField = "buyback_date"
	ShareCountField  = "share_count"
	ValueField       = "value"

	DeclaredDateField = "declared_date"
	ExDateField       = "ex_date"
	PayDateField      = "pay_date"
	RecordDateField   = "record_date"
	AmountField       = "amount"
)

// EventRow is one raw, knowledge-dated event observation as delivered by an
// external source before it is grouped per entity.
//
// Timestamp is the moment the event became knowable. EventDate is the date the
// event occurs; the zero time means the date is unknown (NaT). Values and Dates
// hold payload fields; NaN and the zero time mark missing payloads.
type EventRow struct {
	SID       int64                `json:"sid" validate:"gte=0"`
	Timestamp time.Time            `json:"timestamp" validate:"required"`
	EventDate time.Time            `json:"event_date"`
	Values    map[string]float64   `json:"values,omitempty"`
	Dates     map[string]time.Time `json:"dates,omitempty"`
}
