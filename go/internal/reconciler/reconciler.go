package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/wheelhouse/go/internal/feed"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/rs/zerolog/log"
)

// State is the reconciler's animation state.
type State string

const (
	StateIdle      State = "IDLE"
	StateAnimating State = "ANIMATING"
	StateRevealing State = "REVEALING"
)

// Config holds reconciliation tuning.
type Config struct {
	// FreshnessWindow bounds how old a snapshot's PublishedAt may be to
	// still count as a new spin. Replays of ancient state after a long
	// disconnect fall outside it and trigger nothing.
	FreshnessWindow time.Duration
	// RevealMargin pads the scheduled animation-to-reveal transition so
	// the reveal never fires before the animation visually settles.
	RevealMargin time.Duration
	// RevealDisplay is how long non-privileged observers hold the
	// reveal before returning to idle. Privileged observers hold it
	// until ConfirmReveal.
	RevealDisplay time.Duration
	// Privileged marks the observer that drives winner confirmation.
	Privileged bool
}

// DefaultConfig returns default reconciliation tuning.
func DefaultConfig() Config {
	return Config{
		FreshnessWindow: 30 * time.Second,
		RevealMargin:    250 * time.Millisecond,
		RevealDisplay:   8 * time.Second,
	}
}

// Hooks are the local UI bindings. All hooks are optional and are
// invoked outside the reconciler's lock, after the state transition
// has been applied.
type Hooks struct {
	// OnAnimate starts (or catches up) the wheel animation. For late
	// joins remaining is less than the record's full duration.
	OnAnimate func(rec models.SpinRecord, remaining time.Duration)
	// OnReveal shows the winner.
	OnReveal func(winner models.Winner)
	// OnIdle returns the UI to its resting state.
	OnIdle func()
}

// Reconciler turns incoming spin record snapshots into local animation
// state transitions: Idle -> Animating -> Revealing -> Idle. One
// instance runs per observer; instances never coordinate with each
// other, because all timing math derives from the server-assigned
// PublishedAt rather than from comparing client clocks.
type Reconciler struct {
	config Config
	hooks  Hooks
	clock  clockwork.Clock

	mu          sync.Mutex
	state       State
	seenAny     bool
	lastSpinID  uuid.UUID
	current     *models.SpinRecord
	revealTimer clockwork.Timer
	idleTimer   clockwork.Timer
	closed      bool
}

// New creates a reconciler in the idle, nothing-yet-seen state.
func New(config Config, hooks Hooks) *Reconciler {
	return &Reconciler{
		config: config,
		hooks:  hooks,
		clock:  clockwork.NewRealClock(),
		state:  StateIdle,
	}
}

// WithClock swaps the reconciler's clock. Tests inject a fake clock to
// drive reveal timers deterministically.
func (r *Reconciler) WithClock(clock clockwork.Clock) *Reconciler {
	r.clock = clock
	return r
}

// State returns the current animation state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Current returns the last applied record, or nil.
func (r *Reconciler) Current() *models.SpinRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Run consumes a feed subscription until ctx is done or the
// subscription's channel closes. It owns cleanup: the subscription is
// cancelled and all timers are stopped before Run returns.
func (r *Reconciler) Run(ctx context.Context, sub *feed.Subscription) error {
	defer r.Close()
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-sub.Records():
			if !ok {
				return nil
			}
			r.Apply(rec)
		}
	}
}

// Apply reconciles one incoming snapshot. Malformed snapshots are
// dropped and logged; they never corrupt local state.
func (r *Reconciler) Apply(rec models.SpinRecord) {
	if rec.IsActive && (rec.Winner == nil || rec.DurationSeconds <= 0) {
		log.Warn().
			Str("spin_id", rec.SpinID.String()).
			Str("session_id", rec.SessionID.String()).
			Msg("dropping malformed spin record snapshot")
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	// Same spinId as last seen: retransmission or duplicate listener
	// firing. Exactly one animation cycle per spinId -- but a
	// retirement of the spin we're showing still returns the wheel to
	// rest.
	if r.seenAny && rec.SpinID == r.lastSpinID {
		if rec.IsActive {
			r.mu.Unlock()
			return
		}
		r.current = &rec
		r.cancelTimersLocked()
		fire := r.toIdleLocked()
		r.mu.Unlock()
		if fire != nil {
			fire()
		}
		return
	}

	first := !r.seenAny
	now := r.clock.Now()
	r.seenAny = true
	r.lastSpinID = rec.SpinID
	r.cancelTimersLocked()

	var fire func()

	switch {
	case !rec.IsActive:
		// Already-retired record: rest state, nothing to animate.
		r.current = &rec
		fire = r.toIdleLocked()

	case first:
		// Late-joiner baseline (and reconnect catch-up): elapsed time
		// comes from the server-assigned publish time.
		r.current = &rec
		elapsed := rec.Elapsed(now)
		if elapsed < rec.Duration() {
			fire = r.toAnimatingLocked(rec, rec.Duration()-elapsed)
		} else {
			// The spin already finished; jump straight to the resting
			// reveal, skipping the animation entirely.
			fire = r.toRevealingLocked()
		}

	case now.Sub(rec.PublishedAt) > r.config.FreshnessWindow:
		// A "new" spinId with an ancient publish time is a replay, not
		// a new spin. Remember it as seen, trigger nothing.
		log.Warn().
			Str("spin_id", rec.SpinID.String()).
			Time("published_at", rec.PublishedAt).
			Msg("ignoring stale spin record snapshot")

	default:
		// Fresh spin: full-length animation.
		r.current = &rec
		fire = r.toAnimatingLocked(rec, rec.Duration())
	}
	r.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// ConfirmReveal moves a privileged observer from Revealing back to
// Idle after the user acknowledges the winner. The caller follows up
// with the coordinator's ConfirmWinner call. Returns false when there
// is nothing to confirm.
func (r *Reconciler) ConfirmReveal() bool {
	r.mu.Lock()
	if r.closed || r.state != StateRevealing {
		r.mu.Unlock()
		return false
	}
	fire := r.toIdleLocked()
	r.mu.Unlock()

	if fire != nil {
		fire()
	}
	return true
}

// Close stops all scheduled timers. No hook fires after Close returns;
// safe from any state, required on unsubscribe or session change so a
// stale reveal timer never acts on a session the observer has left.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.cancelTimersLocked()
}

func (r *Reconciler) cancelTimersLocked() {
	if r.revealTimer != nil {
		r.revealTimer.Stop()
		r.revealTimer = nil
	}
	if r.idleTimer != nil {
		r.idleTimer.Stop()
		r.idleTimer = nil
	}
}

func (r *Reconciler) toAnimatingLocked(rec models.SpinRecord, remaining time.Duration) func() {
	r.state = StateAnimating
	r.revealTimer = r.clock.AfterFunc(remaining+r.config.RevealMargin, r.onRevealTimer)

	if r.hooks.OnAnimate == nil {
		return nil
	}
	hook := r.hooks.OnAnimate
	return func() { hook(rec, remaining) }
}

func (r *Reconciler) toRevealingLocked() func() {
	r.state = StateRevealing
	if !r.config.Privileged {
		r.idleTimer = r.clock.AfterFunc(r.config.RevealDisplay, r.onIdleTimer)
	}

	if r.hooks.OnReveal == nil || r.current == nil || r.current.Winner == nil {
		return nil
	}
	hook := r.hooks.OnReveal
	winner := *r.current.Winner
	return func() { hook(winner) }
}

func (r *Reconciler) toIdleLocked() func() {
	prev := r.state
	r.state = StateIdle
	if prev == StateIdle || r.hooks.OnIdle == nil {
		return nil
	}
	hook := r.hooks.OnIdle
	return func() { hook() }
}

func (r *Reconciler) onRevealTimer() {
	r.mu.Lock()
	if r.closed || r.state != StateAnimating {
		r.mu.Unlock()
		return
	}
	fire := r.toRevealingLocked()
	r.mu.Unlock()

	if fire != nil {
		fire()
	}
}

func (r *Reconciler) onIdleTimer() {
	r.mu.Lock()
	if r.closed || r.state != StateRevealing {
		r.mu.Unlock()
		return
	}
	fire := r.toIdleLocked()
	r.mu.Unlock()

	if fire != nil {
		fire()
	}
}
