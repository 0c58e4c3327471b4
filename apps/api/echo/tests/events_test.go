package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/moffermann/school-attendance/core/attendance"
	testutil "github.com/moffermann/school-attendance/tests"
)

func Test_eventApi_register(t *testing.T) {
	env := setup(t)
	st := testutil.CreateStudent(t, env.dir, "Amina", "5B", true)
	now := time.Now().UTC()

	// happy path: first swipe of the day
	ne := testutil.NewEvent(st.ID, attendance.EventIn, now.Add(-time.Hour))
	req, rec := newRequest(http.MethodPost, "/v1/events", marchallObj(t, ne))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v, want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var ev attendance.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if ev.ID == "" || ev.Type != attendance.EventIn || ev.ConflictCorrected {
		t.Errorf("event = %+v, want an uncorrected IN with an id", ev)
	}

	// duplicate IN right after: corrected on the way in
	ne = testutil.NewEvent(st.ID, attendance.EventIn, now.Add(-55*time.Minute))
	req, rec = newRequest(http.MethodPost, "/v1/events", marchallObj(t, ne))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v, want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if ev.Type != attendance.EventOut || !ev.ConflictCorrected {
		t.Errorf("event = %+v, want a corrected OUT", ev)
	}
}

func Test_eventApi_register_errors(t *testing.T) {
	env := setup(t)
	st := testutil.CreateStudent(t, env.dir, "Amina", "5B", true)
	now := time.Now().UTC()

	tests := []httpTest{
		{
			name: "empty body", method: http.MethodPost, path: "/v1/events",
			body:     marchallObj(t, attendance.NewEvent{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"student_id":  "this field is required",
				"device_id":   "this field is required",
				"gate_id":     "this field is required",
				"type":        "this field is required",
				"occurred_at": "this field is required",
			}),
		},
		{
			name: "bad type", method: http.MethodPost, path: "/v1/events",
			body:     marchallObj(t, testutil.NewEvent(st.ID, "lol", now)),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"type": "must be one of 'in' or 'out'"}),
		},
		{
			name: "student id not a uuid", method: http.MethodPost, path: "/v1/events",
			body:     marchallObj(t, testutil.NewEvent("nope", attendance.EventIn, now)),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"student_id": "student_id must be a valid version 4 UUID"}),
		},
		{
			name: "stale occurred_at", method: http.MethodPost, path: "/v1/events",
			body:     marchallObj(t, testutil.NewEvent(st.ID, attendance.EventIn, now.Add(-8*24*time.Hour))),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"occurred_at": "occurred_at is too far in the past"}),
		},
		{
			name: "unknown student", method: http.MethodPost, path: "/v1/events",
			body:     marchallObj(t, testutil.NewEvent(uuid.New().String(), attendance.EventIn, now)),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "student not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_eventApi_timeline(t *testing.T) {
	env := setup(t)
	st := testutil.CreateStudent(t, env.dir, "Amina", "5B", true)
	ctx := context.Background()
	t0 := time.Now().UTC().Add(-3 * time.Hour)

	for i, step := range []struct {
		typ attendance.EventType
		at  time.Time
	}{
		{attendance.EventIn, t0},
		{attendance.EventOut, t0.Add(time.Hour)},
		{attendance.EventOut, t0.Add(2 * time.Hour)}, // corrected to IN
	} {
		if _, err := env.svc.RegisterEvent(ctx, testutil.NewEvent(st.ID, step.typ, step.at)); err != nil {
			t.Fatalf("RegisterEvent(%d) failed: %v", i, err)
		}
	}

	get := func(t *testing.T, rawQuery string) []attendance.Event {
		t.Helper()
		path := "/v1/students/" + st.ID + "/events"
		if rawQuery != "" {
			path += "?" + rawQuery
		}
		req, rec := newRequest(http.MethodGet, path)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v, want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var events []attendance.Event
		if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		return events
	}

	// default: chronological
	events := get(t, "")
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	wantTypes := []attendance.EventType{attendance.EventIn, attendance.EventOut, attendance.EventIn}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("events[%d] = %v, want %v", i, events[i].Type, want)
		}
	}

	// reverse ordering
	events = get(t, "ordering=-occurred_at")
	if len(events) != 3 || !events[0].OccurredAt.After(events[2].OccurredAt) {
		t.Error("descending ordering not applied")
	}

	// filters
	if events = get(t, "type=out"); len(events) != 1 {
		t.Errorf("type=out events = %d, want 1", len(events))
	}
	if events = get(t, "corrected_only=true"); len(events) != 1 {
		t.Errorf("corrected_only events = %d, want 1", len(events))
	}
	from := url.QueryEscape(t0.Add(90 * time.Minute).Format(time.RFC3339))
	if events = get(t, "from="+from); len(events) != 1 {
		t.Errorf("from events = %d, want 1", len(events))
	}

	// unknown student
	tt := httpTest{
		name: "unknown student", method: http.MethodGet,
		path:     "/v1/students/" + uuid.New().String() + "/events",
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "student not found"}),
	}
	req, rec := newRequest(tt.method, tt.path)
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}

func Test_eventApi_corrections(t *testing.T) {
	env := setup(t)
	st := testutil.CreateStudent(t, env.dir, "Amina", "5B", true)
	ctx := context.Background()
	t0 := time.Now().UTC().Add(-time.Hour)

	if _, err := env.svc.RegisterEvent(ctx, testutil.NewEvent(st.ID, attendance.EventIn, t0)); err != nil {
		t.Fatalf("RegisterEvent() failed: %v", err)
	}
	if _, err := env.svc.RegisterEvent(ctx, testutil.NewEvent(st.ID, attendance.EventIn, t0.Add(5*time.Minute))); err != nil {
		t.Fatalf("RegisterEvent() failed: %v", err)
	}

	req, rec := newRequest(http.MethodGet, "/v1/students/"+st.ID+"/corrections")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v, want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var corrs []attendance.SequenceCorrection
	if err := json.Unmarshal(rec.Body.Bytes(), &corrs); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if len(corrs) != 1 {
		t.Fatalf("corrections = %d, want 1", len(corrs))
	}
	if corrs[0].RequestedType != attendance.EventIn || corrs[0].CorrectedType != attendance.EventOut {
		t.Errorf("correction types = %v -> %v, want in -> out", corrs[0].RequestedType, corrs[0].CorrectedType)
	}
}

func Test_server_home(t *testing.T) {
	env := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("code = %v, want %v", rec.Code, http.StatusOK)
	}

	req, rec = newRequest(http.MethodGet, "/metrics")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("metrics code = %v, want %v", rec.Code, http.StatusOK)
	}
}
