package cooldown

import "time"

// Tracker records when the last automated watering completed and reports
// whether a new cycle is currently permitted. It only reports the soft
// cooldown status; override policy belongs to the caller.
//
// Tracker is not safe for concurrent use on its own. The watering engine
// guards it with its state mutex.
type Tracker struct {
	cooldown      time.Duration
	lastWateredAt time.Time
	hasWatered    bool
}

func New(cooldown time.Duration) *Tracker {
	return &Tracker{cooldown: cooldown}
}

// Allowed reports whether the cooldown has cleared. It is always true before
// the first recorded watering.
func (t *Tracker) Allowed(now time.Time) bool {
	if !t.hasWatered {
		return true
	}
	return now.Sub(t.lastWateredAt) >= t.cooldown
}

// Record marks a completed watering. It must be called exactly once per
// completed cycle and never for an aborted one.
func (t *Tracker) Record(now time.Time) {
	t.lastWateredAt = now
	t.hasWatered = true
}

// Remaining returns how long until the cooldown clears, or zero if watering
// is already allowed.
func (t *Tracker) Remaining(now time.Time) time.Duration {
	if t.Allowed(now) {
		return 0
	}
	return t.cooldown - now.Sub(t.lastWateredAt)
}

// SetCooldown applies a configuration update to the cooldown window.
func (t *Tracker) SetCooldown(d time.Duration) {
	t.cooldown = d
}

// LastWatered returns the last completed watering time, if any.
func (t *Tracker) LastWatered() (time.Time, bool) {
	return t.lastWateredAt, t.hasWatered
}
