// Package anomaly — fsm.go
//
// The anomaly state machine at the core of Sprinkler's remediation policy.
//
// State transition graph:
//
//	NEGATIVE ──Occurred──→ POSITIVE ──Fixing──→ FIXING(1) ──Fixing──→ FIXING(2) ─ ... ─→ FIXING(n) ──GaveUp──→ OUT_OF_CONTROL
//	   ↑                      ↑                     ↑                                         ↑                    │
//	   └──────────Disappeared─┴─────────Fixed────────┴─────────────────Fixed────────────────────┘           HasGivenUp (self-loop)
//
// Escalation (state "gets worse") is driven by escalate(); decay back to
// NEGATIVE is driven by diminish(). Both are total: every state accepts
// both operations and yields a well-defined transition.
//
// Invariants:
//   - escalate() never reaches Negative.
//   - diminish() always reaches Negative.
//   - Fixing(n) with n >= maxRetry escalates to GaveUp -> OutOfControl.
//   - Applying a transition that does not originate at the current state
//     is a no-op, never a panic (see Apply).
package anomaly

import "fmt"

// Kind identifies one of the four Anomaly cases.
type Kind uint8

const (
	KindNegative Kind = iota
	KindPositive
	KindFixing
	KindOutOfControl
)

func (k Kind) String() string {
	switch k {
	case KindNegative:
		return "Negative"
	case KindPositive:
		return "Positive"
	case KindFixing:
		return "Fixing"
	case KindOutOfControl:
		return "OutOfControl"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// maxRetryCount is the sentinel RetryCount() returns once OutOfControl,
// standing in for "the maximum representable count".
const maxRetryCount = ^uint(0)

// Anomaly is the tagged-variant state of one monitored subject. The zero
// value is Negative.
type Anomaly struct {
	kind  Kind
	count uint // meaningful only when kind == KindFixing
}

// Negative returns the no-anomaly state.
func Negative() Anomaly { return Anomaly{kind: KindNegative} }

// Positive returns the observed-not-yet-intervening state.
func Positive() Anomaly { return Anomaly{kind: KindPositive} }

// Fixing returns Fixing(n). n must be >= 1.
func Fixing(n uint) Anomaly {
	if n < 1 {
		n = 1
	}
	return Anomaly{kind: KindFixing, count: n}
}

// OutOfControl returns the retry-budget-exhausted state.
func OutOfControl() Anomaly { return Anomaly{kind: KindOutOfControl} }

// Kind reports which of the four cases this value holds.
func (a Anomaly) Kind() Kind { return a.kind }

// RetryCount returns 0 for Negative/Positive, n for Fixing(n), and the
// maximum representable count for OutOfControl.
func (a Anomaly) RetryCount() uint {
	switch a.kind {
	case KindFixing:
		return a.count
	case KindOutOfControl:
		return maxRetryCount
	default:
		return 0
	}
}

// Less orders Fixing(n) states by n. States of different kinds are
// incomparable and Less always reports false for them.
func (a Anomaly) Less(other Anomaly) bool {
	if a.kind != KindFixing || other.kind != KindFixing {
		return false
	}
	return a.count < other.count
}

func (a Anomaly) String() string {
	if a.kind == KindFixing {
		return fmt.Sprintf("Fixing(%d)", a.count)
	}
	return a.kind.String()
}

// Transition is one of the eight named FSM edges.
type Transition uint8

const (
	Normal Transition = iota
	Occurred
	Unhandled
	Disappeared
	Fixed
	FixingTransition
	GaveUp
	HasGivenUp
)

func (t Transition) String() string {
	switch t {
	case Normal:
		return "Normal"
	case Occurred:
		return "Occurred"
	case Unhandled:
		return "Unhandled"
	case Disappeared:
		return "Disappeared"
	case Fixed:
		return "Fixed"
	case FixingTransition:
		return "Fixing"
	case GaveUp:
		return "GaveUp"
	case HasGivenUp:
		return "HasGivenUp"
	default:
		return fmt.Sprintf("Transition(%d)", uint8(t))
	}
}

// Important reports whether this transition must be reported upstream:
// Occurred, Disappeared, Fixed, and GaveUp are the edges the master cares
// about; the others are purely internal bookkeeping.
func (t Transition) Important() bool {
	switch t {
	case Occurred, Disappeared, Fixed, GaveUp:
		return true
	default:
		return false
	}
}

// Escalate computes the transition triggered by one "still bad"
// observation. maxRetry must be >= 1.
func Escalate(a Anomaly, maxRetry uint) Transition {
	switch a.kind {
	case KindNegative:
		return Occurred
	case KindPositive:
		return FixingTransition
	case KindFixing:
		if a.count < maxRetry {
			return FixingTransition
		}
		return GaveUp
	case KindOutOfControl:
		return HasGivenUp
	default:
		return Unhandled
	}
}

// Diminish computes the transition triggered by one "looks fine"
// observation: every state maps to the edge reaching Negative.
func Diminish(a Anomaly) Transition {
	switch a.kind {
	case KindNegative:
		return Normal
	case KindPositive:
		return Disappeared
	case KindFixing:
		return Fixed
	case KindOutOfControl:
		return Disappeared
	default:
		return Unhandled
	}
}

// EdgeFor answers "what edge corresponds to going from state from to state
// to?" for exactly the pairs escalate/diminish can produce. The second
// return value is false for any pair outside that set (an impossible
// transition was requested).
func EdgeFor(from, to Anomaly) (Transition, bool) {
	switch from.kind {
	case KindNegative:
		switch to.kind {
		case KindNegative:
			return Normal, true
		case KindPositive:
			return Occurred, true
		}
	case KindPositive:
		switch to.kind {
		case KindNegative:
			return Disappeared, true
		case KindFixing:
			if to.count == 1 {
				return FixingTransition, true
			}
		}
	case KindFixing:
		switch to.kind {
		case KindNegative:
			return Fixed, true
		case KindFixing:
			if to.count == from.count+1 {
				return FixingTransition, true
			}
		case KindOutOfControl:
			return GaveUp, true
		}
	case KindOutOfControl:
		switch to.kind {
		case KindNegative:
			return Disappeared, true
		case KindOutOfControl:
			return HasGivenUp, true
		}
	}
	return Normal, false
}

// applyFrom returns the state transition t leads to from a, and false
// when t does not originate at a's kind. Used by Apply; not exported
// because it is only meaningful alongside the origin check.
func (a Anomaly) applyFrom(t Transition) (Anomaly, bool) {
	switch a.kind {
	case KindNegative:
		switch t {
		case Normal:
			return a, true
		case Occurred:
			return Positive(), true
		}
	case KindPositive:
		switch t {
		case Disappeared:
			return Negative(), true
		case FixingTransition:
			return Fixing(1), true
		}
	case KindFixing:
		switch t {
		case Fixed:
			return Negative(), true
		case FixingTransition:
			return Fixing(a.count + 1), true
		case GaveUp:
			return OutOfControl(), true
		}
	case KindOutOfControl:
		switch t {
		case Disappeared:
			return Negative(), true
		case HasGivenUp:
			return a, true
		}
	}
	return a, false
}

// Apply applies transition t to state a, returning the resulting state.
// Applying a transition that does not originate at a's current kind is a
// no-op: it returns a unchanged rather than panicking, so callers can
// freely compose Escalate/Diminish results with external policy (e.g. a
// divider that decides not to admit a cycle) without risking a crash.
func Apply(a Anomaly, t Transition) Anomaly {
	next, ok := a.applyFrom(t)
	if !ok {
		return a
	}
	return next
}
