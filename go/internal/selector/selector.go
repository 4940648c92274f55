package selector

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/mcdev12/wheelhouse/go/internal/models"
)

// ErrEmptyRoster is returned when Select is called with no participants.
var ErrEmptyRoster = errors.New("roster is empty")

const (
	// Full turns added on top of the base offset so the wheel never
	// stops abruptly.
	minFullTurns = 3
	maxFullTurns = 5

	// Animation length bounds in seconds. Clients must always read the
	// duration from the published record, never assume a constant.
	minDurationSec = 3.5
	maxDurationSec = 5.5
)

// Result holds everything the coordinator needs to publish a spin.
type Result struct {
	WinnerIndex     int
	TargetAngle     float64
	DurationSeconds float64
}

// Selector picks a uniformly-random winner from a roster and derives
// the animation trajectory. The zero value is not usable; construct
// with New.
type Selector struct {
	// randInt returns a uniform value in [0, n). Overridable in tests.
	randInt func(n int) (int, error)
	// fullTurns draws the number of extra full rotations.
	fullTurns func() (int, error)
	// duration draws the animation length in seconds.
	duration func() (float64, error)
}

// New creates a Selector backed by crypto/rand.
func New() *Selector {
	s := &Selector{}
	s.randInt = cryptoIntn
	s.fullTurns = func() (int, error) {
		n, err := cryptoIntn(maxFullTurns - minFullTurns + 1)
		if err != nil {
			return 0, err
		}
		return minFullTurns + n, nil
	}
	s.duration = func() (float64, error) {
		// 1ms resolution is plenty for an animation length.
		steps := int((maxDurationSec - minDurationSec) * 1000)
		n, err := cryptoIntn(steps + 1)
		if err != nil {
			return 0, err
		}
		return minDurationSec + float64(n)/1000, nil
	}
	return s
}

// WithDraws returns a Selector with the turn count and duration draws
// pinned to fixed values. Used by tests that assert exact angles.
func (s *Selector) WithDraws(turns int, durationSec float64) *Selector {
	clone := *s
	clone.fullTurns = func() (int, error) { return turns, nil }
	clone.duration = func() (float64, error) { return durationSec, nil }
	return &clone
}

// Select picks a winner index in [0, len(roster)) with probability
// 1/len each, and computes the rotation that parks the winner's
// segment midpoint under the fixed pointer at 0 degrees.
func (s *Selector) Select(roster []models.Participant) (*Result, error) {
	n := len(roster)
	if n == 0 {
		return nil, ErrEmptyRoster
	}

	winnerIndex, err := s.randInt(n)
	if err != nil {
		return nil, fmt.Errorf("failed to draw winner index: %w", err)
	}

	turns, err := s.fullTurns()
	if err != nil {
		return nil, fmt.Errorf("failed to draw full turns: %w", err)
	}

	durationSec, err := s.duration()
	if err != nil {
		return nil, fmt.Errorf("failed to draw duration: %w", err)
	}

	return &Result{
		WinnerIndex:     winnerIndex,
		TargetAngle:     float64(turns)*360 + BaseOffset(n, winnerIndex),
		DurationSeconds: durationSec,
	}, nil
}

// BaseOffset returns the rotation in [0, 360) that aligns the midpoint
// of segment i (of n equal segments) with the pointer at the top. The
// wheel rotates clockwise, so the offset is 360 minus the midpoint.
// For n == 1 the midpoint is 180 and the wheel still travels half a
// turn on top of its full rotations; a single participant is not
// special-cased into "no animation".
func BaseOffset(n, i int) float64 {
	segment := 360.0 / float64(n)
	midpoint := float64(i)*segment + segment/2
	return math.Mod(360-midpoint, 360)
}

// cryptoIntn returns a uniform value in [0, n) from crypto/rand.
// rand.Int performs rejection sampling internally, so every value is
// equally likely.
func cryptoIntn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
