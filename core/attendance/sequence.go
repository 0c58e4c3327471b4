package attendance

import (
	"context"

	"github.com/pkg/errors"
)

// typeResolver decides the authoritative type to persist for a new event.
// One variant is picked per call from the feature flag source.
type typeResolver interface {
	resolve(ctx context.Context, tx Tx, ne NewEvent) (EventType, error)
}

// passThrough persists the requested type as given. It is used when sequence
// validation is disabled and on the fail-open path after a lock timeout.
type passThrough struct{}

func (passThrough) resolve(_ context.Context, _ Tx, ne NewEvent) (EventType, error) {
	return ne.Type, nil
}

// strictAlternation enforces the IN, OUT, IN, ... timeline invariant. It
// reads the predecessor under the student's exclusive lock: the authoritative
// type is IN when no predecessor exists, otherwise the opposite of the
// predecessor's type.
//
// The decision is made against what chronologically precedes the new event
// at the moment of insertion; events committed after it are never
// re-validated (a late backdated swipe can leave two consecutive INs).
type strictAlternation struct {
	repo Repository
}

func (s strictAlternation) resolve(ctx context.Context, tx Tx, ne NewEvent) (EventType, error) {
	if err := s.repo.LockStudentTimeline(ctx, tx, ne.StudentID); err != nil {
		return "", errors.Wrap(err, "locking student timeline")
	}

	pred, err := s.repo.PredecessorEvent(ctx, tx, ne.StudentID, ne.OccurredAt)
	if err != nil {
		if errors.Cause(err) == ErrNoPredecessor {
			return EventIn, nil // a timeline always starts with IN
		}
		return "", errors.Wrap(err, "reading predecessor event")
	}
	return pred.Type.Opposite(), nil
}
