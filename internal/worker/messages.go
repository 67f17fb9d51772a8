package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"terrainstream/internal/terrain"
	"terrainstream/internal/tile"
	"terrainstream/internal/tile_source"
)

// RequestKind separates real work from the stop signal, which travels
// through the same queue.
type RequestKind int

const (
	KindLoad RequestKind = iota
	KindStop
)

// Outcome tags every load response. Errors never cross the worker boundary
// in any other form.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeUnloadable: the server has no data for the tile. Never retried.
	OutcomeUnloadable
	// OutcomeTimeout: transient, retried on a later traversal.
	OutcomeTimeout
	// OutcomeError: transport failure or a recoverable error status.
	OutcomeError
	// OutcomeUnexpected: a status the API does not define.
	OutcomeUnexpected
	// OutcomeOffline: a network request was refused because the engine is
	// offline.
	OutcomeOffline
	OutcomeCorrupt
	OutcomeIOFailure
	OutcomeStopped
)

var outcomeNames = [...]string{
	OutcomeOK:         "ok",
	OutcomeUnloadable: "unloadable",
	OutcomeTimeout:    "timeout",
	OutcomeError:      "error",
	OutcomeUnexpected: "unexpected",
	OutcomeOffline:    "offline",
	OutcomeCorrupt:    "corrupt",
	OutcomeIOFailure:  "io_failure",
	OutcomeStopped:    "stopped",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// Outcomes lists every outcome, for pre-registering metric series.
func Outcomes() []Outcome {
	out := make([]Outcome, len(outcomeNames))
	for i := range out {
		out[i] = Outcome(i)
	}
	return out
}

// Failing reports whether the outcome should stop the rest of a batch and
// start the offline cooldown.
func (o Outcome) Failing() bool {
	return o == OutcomeError || o == OutcomeUnexpected
}

type LoadRequest struct {
	ID      uuid.UUID
	Key     tile.Key
	Source  tile_source.Origin
	Offline bool
	Kind    RequestKind
}

type LoadResponse struct {
	RequestID uuid.UUID
	Key       tile.Key
	Outcome   Outcome
	Origin    tile_source.Origin
	// Node is set only for OutcomeOK.
	Node     *terrain.Node
	Err      error
	Duration time.Duration
	Worker   int
}

var (
	errBatchFailed = errors.New("skipped after an earlier failure in the batch")
	errOffline     = errors.New("network requests disabled while offline")
)

// Classify maps a load error to its outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, tile_source.ErrNoData):
		return OutcomeUnloadable
	case errors.Is(err, tile_source.ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, tile_source.ErrUnexpectedStatus):
		return OutcomeUnexpected
	case errors.Is(err, tile_source.ErrCorrupt):
		return OutcomeCorrupt
	case errors.Is(err, tile_source.ErrIO):
		return OutcomeIOFailure
	case errors.Is(err, context.Canceled):
		return OutcomeStopped
	default:
		return OutcomeError
	}
}
