package attendance

import "testing"

func TestEventType_Opposite(t *testing.T) {
	if got := EventIn.Opposite(); got != EventOut {
		t.Errorf("EventIn.Opposite() = %v, want %v", got, EventOut)
	}
	if got := EventOut.Opposite(); got != EventIn {
		t.Errorf("EventOut.Opposite() = %v, want %v", got, EventIn)
	}
}

func TestEventType_Valid(t *testing.T) {
	for _, typ := range []EventType{EventIn, EventOut} {
		if !typ.Valid() {
			t.Errorf("%q should be valid", typ)
		}
	}
	for _, typ := range []EventType{"", "IN", "entry", "lol"} {
		if typ.Valid() {
			t.Errorf("%q should not be valid", typ)
		}
	}
}
