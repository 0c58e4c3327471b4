package core

import (
	"sync"
	"testing"
	"time"
)

func TestNewConfig_defaults(t *testing.T) {
	conf := NewConfig()

	if conf.Env != "DEV" {
		t.Errorf("Env = %q, want DEV", conf.Env)
	}
	if !conf.Debug {
		t.Error("Debug should default to true")
	}
	if conf.Attendance.LockTimeout != 5*time.Second {
		t.Errorf("LockTimeout = %v, want 5s", conf.Attendance.LockTimeout)
	}
	if conf.Attendance.MaxEventLag != 7*24*time.Hour {
		t.Errorf("MaxEventLag = %v, want 168h", conf.Attendance.MaxEventLag)
	}
	if conf.Attendance.MaxEventLead != time.Hour {
		t.Errorf("MaxEventLead = %v, want 1h", conf.Attendance.MaxEventLead)
	}
	if !conf.SequenceValidationEnabled() {
		t.Error("sequence validation should default to enabled")
	}
}

func TestConfig_Location(t *testing.T) {
	conf := &Config{TimeZone: "America/Santiago"}
	if loc := conf.Location(); loc.String() != "America/Santiago" {
		t.Errorf("Location() = %v, want America/Santiago", loc)
	}

	// unknown zones fall back to UTC instead of breaking day bucketing
	conf = &Config{TimeZone: "Mars/Olympus"}
	if loc := conf.Location(); loc != time.UTC {
		t.Errorf("Location() = %v, want UTC", loc)
	}
}

func TestConfig_Location_concurrent(t *testing.T) {
	conf := &Config{TimeZone: "America/Santiago"}

	locs := make([]*time.Location, 8)
	var wg sync.WaitGroup
	for i := range locs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			locs[i] = conf.Location()
		}(i)
	}
	wg.Wait()

	for i, loc := range locs {
		if loc != locs[0] {
			t.Errorf("Location()[%d] = %p, want %p", i, loc, locs[0])
		}
	}
}
