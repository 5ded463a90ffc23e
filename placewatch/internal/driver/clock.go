// Package driver contains the triggers that feed detections to the
// reconciler: the subtree observer (event driven), the bounded poll-retry
// (time driven, after navigations) and the navigation detector.
package driver

import (
	"time"

	"github.com/hazyhaar/reviewbuddy/place"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/reconcile"
)

// Clock abstracts waiting so retry budgets can be exercised without sleeping.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// RealClock waits on the wall clock.
type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Feeder consumes detections. *reconcile.Reconciler implements it.
type Feeder interface {
	Feed(d place.Detection) reconcile.Outcome
}
