package price

import (
	"context"
	"fmt"

	"token-alert-bot/internal/types"
)

// Outcome classifies a fetch so callers can branch without treating every failure alike
type Outcome int

const (
	OutcomeFound Outcome = iota
	OutcomeNotFound
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeTransient:
		return "transient"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// FetchResult is a snapshot, a not-found answer, or a transient failure. Err describes the
// failure for logging and is nil when Outcome is OutcomeFound.
type FetchResult struct {
	Outcome  Outcome
	Snapshot types.TokenSnapshot
	Err      error
}

func Found(s types.TokenSnapshot) FetchResult {
	return FetchResult{Outcome: OutcomeFound, Snapshot: s}
}

func NotFound(err error) FetchResult {
	return FetchResult{Outcome: OutcomeNotFound, Err: err}
}

func Transient(err error) FetchResult {
	return FetchResult{Outcome: OutcomeTransient, Err: err}
}

// Fetcher retrieves a fresh snapshot for a token. Implementations must bound each call.
type Fetcher interface {
	Fetch(ctx context.Context, tokenAddress string) FetchResult
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, tokenAddress string) FetchResult

func (f FetcherFunc) Fetch(ctx context.Context, tokenAddress string) FetchResult {
	return f(ctx, tokenAddress)
}
