package notification

import (
	"testing"
	"time"

	"github.com/moffermann/school-attendance/core"
)

func TestLocalDay(t *testing.T) {
	santiago := time.FixedZone("UTC-4", -4*60*60)
	tokyo := time.FixedZone("UTC+9", 9*60*60)

	tests := []struct {
		name string
		t    time.Time
		loc  *time.Location
		want time.Time
	}{
		{
			name: "midday stays on the same day",
			t:    time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
			loc:  santiago,
			want: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "early UTC morning is still the previous local day",
			t:    time.Date(2026, 3, 2, 2, 30, 0, 0, time.UTC),
			loc:  santiago,
			want: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "late UTC evening is already the next local day",
			t:    time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC),
			loc:  tokyo,
			want: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "UTC tenant",
			t:    time.Date(2026, 3, 2, 23, 59, 59, 0, time.UTC),
			loc:  time.UTC,
			want: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LocalDay(tt.t, tt.loc); !got.Equal(tt.want) {
				t.Errorf("LocalDay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTemplate_IsAttendance(t *testing.T) {
	for _, tmpl := range []Template{TemplateArrivalOK, TemplateDepartureOK} {
		if !tmpl.IsAttendance() {
			t.Errorf("%q should be an attendance template", tmpl)
		}
	}
	for _, tmpl := range []Template{TemplateBroadcast, TemplateAbsenceAlert, TemplateLatenessAlert} {
		if tmpl.IsAttendance() {
			t.Errorf("%q should not be an attendance template", tmpl)
		}
	}
}

func TestChannel_JobType(t *testing.T) {
	tests := []struct {
		channel Channel
		want    string
	}{
		{ChannelWhatsapp, core.JobTypeWhatsapp},
		{ChannelEmail, core.JobTypeEmail},
		{ChannelPush, core.JobTypePush},
	}
	for _, tt := range tests {
		if got := tt.channel.JobType(); got != tt.want {
			t.Errorf("%q.JobType() = %v, want %v", tt.channel, got, tt.want)
		}
	}
}

func TestGuardianContact_OptedIn(t *testing.T) {
	gc := GuardianContact{Templates: []Template{TemplateArrivalOK}}
	if !gc.OptedIn(TemplateArrivalOK) {
		t.Error("OptedIn(arrival-ok) = false, want true")
	}
	if gc.OptedIn(TemplateDepartureOK) {
		t.Error("OptedIn(departure-ok) = true, want false")
	}
}
