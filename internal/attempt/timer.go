package attempt

// Timer drives the per-question countdowns of one attempt. At most one
// question counts down at a time; the others keep their frozen remaining
// seconds. A nil slot means the question is untimed.
//
// Timer is not safe for concurrent use; Session serialises access.
type Timer struct {
	remaining []*int
	active    int // -1 when idle
}

func NewTimer(remaining []*int) *Timer {
	return &Timer{remaining: remaining, active: -1}
}

// Start begins counting down question i. It reports false, and leaves the
// timer idle, when the question is untimed or already at zero.
func (t *Timer) Start(i int) bool {
	t.Stop()
	if i < 0 || i >= len(t.remaining) {
		return false
	}
	r := t.remaining[i]
	if r == nil || *r <= 0 {
		return false
	}
	t.active = i
	return true
}

// Stop halts the countdown without touching the remaining value.
func (t *Timer) Stop() { t.active = -1 }

// Active returns the question currently counting down.
func (t *Timer) Active() (int, bool) { return t.active, t.active >= 0 }

// Tick takes one second off the active question. expired is true on the
// tick that reaches zero; the timer is idle afterwards.
func (t *Timer) Tick() (index int, expired bool) {
	if t.active < 0 {
		return -1, false
	}
	i := t.active
	r := t.remaining[i]
	if *r > 0 {
		*r--
	}
	if *r == 0 {
		t.active = -1
		return i, true
	}
	return i, false
}

// Remaining reports the seconds left for question i; ok is false when the
// question is untimed.
func (t *Timer) Remaining(i int) (secs int, ok bool) {
	if i < 0 || i >= len(t.remaining) || t.remaining[i] == nil {
		return 0, false
	}
	return *t.remaining[i], true
}
