package channel

import "time"

// Candidate is one arm of a Select call. TryOp attempts the arm's
// recv-or-send without blocking and reports whether it fired; on success
// it is responsible for having already stashed any received value where
// the caller's generated code expects it (Select itself is untyped over
// T, so it can't do that on the arm's behalf).
type Candidate struct {
	TryOp func() bool
}

// pollInterval bounds how long Select can go between sweeps over the
// candidate list once every arm has reported not-ready, so it only matters
// for a Select that genuinely blocks a while.
const pollInterval = 200 * time.Microsecond

// Select blocks until exactly one candidate's TryOp fires and returns its
// index, or — if hasDefault is true — returns (-1, true) immediately when
// none fire on the first sweep. This implements the SelectTerminator's
// multi-way-ready semantics as a busy-poll over the channel primitive's
// own non-blocking TrySend/TryRecv, rather than a wakeup-list registered
// with every candidate channel's condition variables: channels don't know
// about each other, so there is no single condvar a cross-channel select
// could wait on without this per-candidate fan-out.
func Select(candidates []Candidate, hasDefault bool) (index int, usedDefault bool) {
	for {
		for i, c := range candidates {
			if c.TryOp() {
				return i, false
			}
		}
		if hasDefault {
			return -1, true
		}
		time.Sleep(pollInterval)
	}
}
