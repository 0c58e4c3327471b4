package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/moffermann/school-attendance/core"
)

type EventType string

const (
	EventIn  EventType = "in"
	EventOut EventType = "out"
)

// Opposite returns the alternation successor of t.
func (t EventType) Opposite() EventType {
	if t == EventIn {
		return EventOut
	}
	return EventIn
}

func (t EventType) Valid() bool {
	return t == EventIn || t == EventOut
}

// Event is one IN/OUT swipe on a student's timeline. Events are created once
// and never updated or deleted; for a fixed student they strictly alternate
// IN, OUT, IN, ... when ordered by OccurredAt.
type Event struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Type      EventType `db:"type" json:"type"`
	GateID    string    `db:"gate_id" json:"gate_id"`
	DeviceID  string    `db:"device_id" json:"device_id"`

	// OccurredAt is the device-reported time, authoritative for ordering.
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"` // UTC
	// SyncedAt is the server receipt time.
	SyncedAt time.Time `db:"synced_at" json:"synced_at"` // UTC

	// LocalSeq is the device's monotonic counter; tie-break only.
	LocalSeq null.Int64 `db:"local_seq" json:"local_seq,omitempty"`

	// EvidenceRef is an opaque ref owned by the photo/audio subsystem.
	EvidenceRef null.String `db:"evidence_ref" json:"evidence_ref,omitempty"`

	Source            null.String `db:"source" json:"source,omitempty"`
	ConflictCorrected bool        `db:"conflict_corrected" json:"conflict_corrected"`
}

// SequenceCorrection is the append-only audit record written whenever the
// sequence validator overrides a device's requested type. Exactly one row
// per corrected event, committed on the same transaction as the event.
type SequenceCorrection struct {
	ID            string    `db:"id" json:"id"`
	EventID       string    `db:"event_id" json:"event_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	RequestedType EventType `db:"requested_type" json:"requested_type"`
	CorrectedType EventType `db:"corrected_type" json:"corrected_type"`
	DeviceID      string    `db:"device_id" json:"device_id"`
	GateID        string    `db:"gate_id" json:"gate_id"`
	OccurredAt    time.Time `db:"occurred_at" json:"occurred_at"`  // UTC
	CorrectedAt   time.Time `db:"corrected_at" json:"corrected_at"` // UTC
}

// NewEvent contains information needed to register a swipe.
type NewEvent struct {
	StudentID   string      `json:"student_id" validate:"required,uuid4"`
	DeviceID    string      `json:"device_id" validate:"required,alphanum_"`
	GateID      string      `json:"gate_id" validate:"required,alphanum_"`
	Type        EventType   `json:"type" validate:"required,eventtype"`
	OccurredAt  time.Time   `json:"occurred_at" validate:"required"`
	LocalSeq    null.Int64  `json:"local_seq"`
	EvidenceRef null.String `json:"evidence_ref"`
	Source      string      `json:"source"`
}

func (ne *NewEvent) Validate(validate *validator.Validate, svc *Service) error {
	ne.DeviceID = core.CleanString(ne.DeviceID)
	ne.GateID = core.CleanString(ne.GateID)
	ne.Source = core.CleanString(ne.Source, true /* lower */)

	if err := validate.Struct(ne); err != nil {
		return err
	}
	return svc.checkTimestamp(ne.OccurredAt)
}

// QueryFilter narrows a student timeline query. All fields are ANDed.
type QueryFilter struct {
	From          time.Time `query:"from"`
	To            time.Time `query:"to"`
	Type          EventType `query:"type"`
	CorrectedOnly bool      `query:"corrected_only"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.From.IsZero() && qf.To.IsZero() && qf.Type == "" && !qf.CorrectedOnly
}
