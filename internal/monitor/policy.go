package monitor

import (
	"fmt"

	"pagewatch/internal/marker"
)

// Kind classifies the outcome of one check.
type Kind string

const (
	KindOK       Kind = "ok"
	KindMismatch Kind = "mismatch"
	KindMissing  Kind = "missing"
	KindError    Kind = "error"
	// KindCanceled marks a cycle abandoned because its context ended
	// (shutdown). It never alerts and is not produced by Decide.
	KindCanceled Kind = "canceled"
)

// Decision is the policy verdict for one outcome. Message is empty for KindOK.
type Decision struct {
	Kind    Kind
	Message string
}

func (d Decision) Alert() bool {
	switch d.Kind {
	case KindMismatch, KindMissing, KindError:
		return true
	}
	return false
}

// Target is what a cycle checks and how its outcome is phrased.
type Target struct {
	URL       string
	Attribute string
	Expected  string
}

// Decide maps an observation (or a fetch error) to exactly one decision.
// A non-nil err takes precedence over obs.
func Decide(t Target, obs marker.Observation, err error) Decision {
	switch {
	case err != nil:
		return Decision{
			Kind:    KindError,
			Message: fmt.Sprintf("ERROR: Failed to check %s. Error: %s", t.URL, err),
		}
	case !obs.Found:
		return Decision{
			Kind:    KindMissing,
			Message: fmt.Sprintf("WARNING: No element with %s found on %s", t.Attribute, t.URL),
		}
	case obs.Value == t.Expected:
		return Decision{Kind: KindOK}
	default:
		return Decision{
			Kind:    KindMismatch,
			Message: fmt.Sprintf("ALERT: The marker's %s is \"%s\" (not \"%s\") on %s", t.Attribute, obs.Value, t.Expected, t.URL),
		}
	}
}
