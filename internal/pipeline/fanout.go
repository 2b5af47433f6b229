package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/superagent/debatecore/internal/models"
	"github.com/superagent/debatecore/internal/seat"
)

// seatResult is one seat call's outcome from a fan-out round.
type seatResult struct {
	SeatID string
	Output seat.Output
	Err    error
}

// fanoutSize bounds worker concurrency for one stage's seat fan-out:
// min(panel size, configured max), per spec §4's "bounded-parallel
// executor (worker pool size per stage, default = min(panel size, 8))".
func fanoutSize(panelSize, configuredMax int) int {
	max := configuredMax
	if max <= 0 {
		max = 8
	}
	if panelSize < max {
		return panelSize
	}
	return max
}

// runFanout calls fn once per seat with bounded concurrency and returns
// results ordered by the panel's declared seat sequence, regardless of
// completion order.
func runFanout(ctx context.Context, seats []models.Seat, fanoutMax int, fn func(context.Context, models.Seat) (seat.Output, error)) []seatResult {
	results := make([]seatResult, len(seats))
	sem := make(chan struct{}, fanoutSize(len(seats), fanoutMax))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range seats {
		i, s := i, s
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			out, err := fn(gctx, s)
			results[i] = seatResult{SeatID: s.SeatID, Output: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// toleranceCheck applies spec §4.1's draft-stage tolerance rule: the round
// tolerates seat failures up to maxFailRatio, but never drops below
// minRequiredSeats successes.
func toleranceCheck(total, failed, minRequired int, maxFailRatio float64) (ok bool, reason string) {
	succeeded := total - failed
	if succeeded < minRequired {
		return false, "insufficient_seats"
	}
	if total > 0 && float64(failed)/float64(total) > maxFailRatio {
		return false, "seat_fail_ratio_exceeded"
	}
	return true, ""
}
