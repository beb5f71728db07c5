package linker

import (
	"time"

	"github.com/google/uuid"
)

// Outcome classifies how a mediated call ended.
type Outcome uint8

const (
	OutcomeOK Outcome = iota
	OutcomeErrorResult
	OutcomeTrap
	OutcomeReentrant
	OutcomeCanceled
)

var outcomeNames = [...]string{
	OutcomeOK:          "ok",
	OutcomeErrorResult: "error_result",
	OutcomeTrap:        "trap",
	OutcomeReentrant:   "reentrant",
	OutcomeCanceled:    "canceled",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// InstantiateEvent describes one instantiation attempt.
type InstantiateEvent struct {
	Session  uuid.UUID
	Imports  int
	Skipped  int
	Err      error
	Duration time.Duration
}

// CallEvent describes one mediated call.
type CallEvent struct {
	Session     uuid.UUID
	Key         InterfaceKey
	Import      ImportRequest
	Async       bool
	Outcome     Outcome
	Suspensions int
	Duration    time.Duration
}

// Observer receives linker events. Implementations must be safe for
// concurrent use.
type Observer interface {
	OnInstantiate(ev InstantiateEvent)
	OnCall(ev CallEvent)
}
