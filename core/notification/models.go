package notification

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/moffermann/school-attendance/core"
)

type Channel string

const (
	ChannelWhatsapp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
	ChannelPush     Channel = "push"
)

// JobType maps the channel to the delivery worker job type.
func (c Channel) JobType() string {
	switch c {
	case ChannelEmail:
		return core.JobTypeEmail
	case ChannelPush:
		return core.JobTypePush
	default:
		return core.JobTypeWhatsapp
	}
}

type Template string

const (
	// attendance templates; at most one per guardian/channel/student/day
	TemplateArrivalOK   Template = "arrival-ok"
	TemplateDepartureOK Template = "departure-ok"

	// non-attendance templates; never deduplicated
	TemplateBroadcast     Template = "broadcast"
	TemplateAbsenceAlert  Template = "absence-alert"
	TemplateLatenessAlert Template = "lateness-alert"
)

// IsAttendance reports whether the once-per-day dedup gate applies.
func (t Template) IsAttendance() bool {
	return t == TemplateArrivalOK || t == TemplateDepartureOK
}

type Status string

const (
	StatusQueued Status = "queued"
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Notification is one outbound message to a guardian. The engine only ever
// creates rows in `queued` status; the delivery workers own Status and
// Retries from then on.
type Notification struct {
	ID         string   `db:"id" json:"id"`
	GuardianID string   `db:"guardian_id" json:"guardian_id"`
	Channel    Channel  `db:"channel" json:"channel"`
	Template   Template `db:"template" json:"template"`

	// ContextID scopes the dedup key; the student id for attendance templates.
	ContextID string `db:"context_id" json:"context_id"`

	// NotificationDate is the calendar day of the event in tenant-local time,
	// normalized to a UTC midnight.
	NotificationDate time.Time `db:"notification_date" json:"notification_date"`

	Status    Status    `db:"status" json:"status"`
	Payload   null.JSON `db:"payload" json:"payload,omitempty"`
	Retries   int       `db:"retries" json:"retries"`
	CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"` // UTC
}

// DedupKey identifies the at-most-one-per-day window of an attendance
// notification. A partial unique index on the notification table backs it.
type DedupKey struct {
	GuardianID string
	Channel    Channel
	Template   Template
	ContextID  string
	Date       time.Time
}

// GuardianContact is the directory's materialized view of one guardian
// channel: where to reach them and which templates they opted into.
type GuardianContact struct {
	GuardianID   string     `json:"guardian_id"`
	GuardianName string     `json:"guardian_name"`
	Channel      Channel    `json:"channel"`
	Address      string     `json:"address"`
	Templates    []Template `json:"templates"`
}

func (gc GuardianContact) OptedIn(tmpl Template) bool {
	for _, t := range gc.Templates {
		if t == tmpl {
			return true
		}
	}
	return false
}

// LocalDay returns the calendar day of t in loc, normalized to UTC midnight.
func LocalDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
}
