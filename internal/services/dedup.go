package services

import "time"

// evictionFactor bounds the identity table: entries whose last
// admission is older than evictionFactor times the window are pruned
// after each admission.
const evictionFactor = 3

// DedupGate suppresses repeat identities inside a trailing window. It
// carries no lock of its own; MonitorService guards it together with
// the durable state so admission and persistence stay atomic.
type DedupGate struct {
	window   time.Duration
	lastSeen map[string]time.Time
}

func NewDedupGate(window time.Duration) *DedupGate {
	return &DedupGate{
		window:   window,
		lastSeen: make(map[string]time.Time),
	}
}

// Admit reports whether an event with the given identity observed at
// observedAt passes the gate, recording the admission when it does.
func (g *DedupGate) Admit(identity string, observedAt time.Time) bool {
	if last, ok := g.lastSeen[identity]; ok {
		if observedAt.Sub(last) < g.window {
			return false
		}
	}
	g.lastSeen[identity] = observedAt
	g.evict(observedAt)
	return true
}

// Seen returns the recorded last admission for an identity.
func (g *DedupGate) Seen(identity string) (time.Time, bool) {
	t, ok := g.lastSeen[identity]
	return t, ok
}

// restore undoes an admission after a failed persist.
func (g *DedupGate) restore(identity string, prev time.Time, had bool) {
	if had {
		g.lastSeen[identity] = prev
		return
	}
	delete(g.lastSeen, identity)
}

func (g *DedupGate) evict(now time.Time) {
	horizon := g.window * evictionFactor
	for id, last := range g.lastSeen {
		if now.Sub(last) >= horizon {
			delete(g.lastSeen, id)
		}
	}
}

// Len returns the number of tracked identities.
func (g *DedupGate) Len() int {
	return len(g.lastSeen)
}
