package selector

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRoster(n int) []models.Participant {
	roster := make([]models.Participant, n)
	for i := range roster {
		roster[i] = models.Participant{
			ID:          uuid.New(),
			DisplayName: string(rune('A' + i)),
			JoinedAt:    time.Now(),
		}
	}
	return roster
}

func TestSelectEmptyRoster(t *testing.T) {
	_, err := New().Select(nil)
	require.ErrorIs(t, err, ErrEmptyRoster)
}

func TestSelectUniformity(t *testing.T) {
	const (
		rosterSize = 5
		draws      = 20000
	)
	roster := makeRoster(rosterSize)
	s := New()

	counts := make([]int, rosterSize)
	for i := 0; i < draws; i++ {
		res, err := s.Select(roster)
		require.NoError(t, err)
		require.GreaterOrEqual(t, res.WinnerIndex, 0)
		require.Less(t, res.WinnerIndex, rosterSize)
		counts[res.WinnerIndex]++
	}

	// Expected 4000 per index; allow 10% tolerance, far beyond any
	// plausible deviation for a uniform source at this sample size.
	expected := float64(draws) / rosterSize
	for i, c := range counts {
		assert.InDelta(t, expected, float64(c), expected*0.10, "index %d drawn %d times", i, c)
	}
}

func TestBaseOffsetProperty(t *testing.T) {
	for n := 1; n <= 12; n++ {
		for i := 0; i < n; i++ {
			seg := 360.0 / float64(n)
			want := math.Mod(360-(float64(i)*seg+seg/2), 360)
			assert.InDelta(t, want, BaseOffset(n, i), 1e-9, "n=%d i=%d", n, i)
		}
	}
}

func TestTargetAngleMatchesBaseOffset(t *testing.T) {
	roster := makeRoster(8)
	s := New().WithDraws(4, 4.0)

	for i := 0; i < 50; i++ {
		res, err := s.Select(roster)
		require.NoError(t, err)
		assert.InDelta(t, BaseOffset(len(roster), res.WinnerIndex), math.Mod(res.TargetAngle, 360), 1e-9)
		assert.GreaterOrEqual(t, res.TargetAngle, 4*360.0)
	}
}

func TestScenarioFourParticipantsWinnerTwo(t *testing.T) {
	// Roster [A,B,C,D]: segment 90, winner midpoint 2*90+45=225,
	// base offset 360-225=135, with 4 full turns => 1575.
	s := New()
	s.randInt = func(n int) (int, error) { return 2, nil }
	s = s.WithDraws(4, 4.0)

	res, err := s.Select(makeRoster(4))
	require.NoError(t, err)
	assert.Equal(t, 2, res.WinnerIndex)
	assert.InDelta(t, 1575.0, res.TargetAngle, 1e-9)
}

func TestSingleParticipantStillSpins(t *testing.T) {
	// One participant: segment 360, midpoint 180, offset 180. The wheel
	// must still travel its full turns rather than skip the animation.
	res, err := New().WithDraws(3, 4.0).Select(makeRoster(1))
	require.NoError(t, err)
	assert.Equal(t, 0, res.WinnerIndex)
	assert.InDelta(t, 3*360+180.0, res.TargetAngle, 1e-9)
}

func TestDurationWithinBounds(t *testing.T) {
	roster := makeRoster(3)
	s := New()
	for i := 0; i < 200; i++ {
		res, err := s.Select(roster)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.DurationSeconds, minDurationSec)
		assert.LessOrEqual(t, res.DurationSeconds, maxDurationSec)
	}
}
