package service

import (
	"sync"
	"time"
)

// Reasons a location's control state changed.
const (
	ChangeReading    = "reading"
	ChangeTransition = "transition"
	ChangeSuppressed = "suppressed"
	ChangeDivergence = "divergence"
	ChangeReconciled = "reconciled"
	ChangeSetpoint   = "setpoint"
	ChangeAuto       = "auto"
)

// Change tells subscribers that one location's snapshot moved.
type Change struct {
	Location string    `json:"location"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

const changeBuffer = 16

// ChangeFeed fans coordinator changes out to subscribers. Publishing never
// blocks: a subscriber that falls behind loses changes, not the hub.
type ChangeFeed struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Change
}

func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{subs: make(map[int]chan Change)}
}

// Subscribe returns a channel of changes and a func that ends the subscription
// and closes the channel. The func may be called more than once.
func (f *ChangeFeed) Subscribe() (<-chan Change, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	ch := make(chan Change, changeBuffer)
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *ChangeFeed) publish(ch Change) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		select {
		case sub <- ch:
		default:
		}
	}
}

// Subscribers is the number of open subscriptions.
func (f *ChangeFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// changeReason names the most significant thing d did, or fallback.
func changeReason(d Decision, divergent bool, fallback string) string {
	switch {
	case d.Transitioned && divergent:
		return ChangeDivergence
	case d.Transitioned:
		return ChangeTransition
	case d.Reconciled:
		return ChangeReconciled
	case d.Suppressed:
		return ChangeSuppressed
	default:
		return fallback
	}
}
