package security

import "time"

// rollingWindow counts timestamps per key over a fixed window.
// Callers hold the monitor lock.
type rollingWindow struct {
	window  time.Duration
	entries map[string][]time.Time
}

func newRollingWindow(window time.Duration) *rollingWindow {
	return &rollingWindow{window: window, entries: make(map[string][]time.Time)}
}

// add records now under key and returns the count inside the window.
func (w *rollingWindow) add(key string, now time.Time) int {
	ts := prune(w.entries[key], now.Add(-w.window))
	ts = append(ts, now)
	w.entries[key] = ts
	return len(ts)
}

func (w *rollingWindow) count(key string, now time.Time) int {
	ts := prune(w.entries[key], now.Add(-w.window))
	if len(ts) == 0 {
		delete(w.entries, key)
		return 0
	}
	w.entries[key] = ts
	return len(ts)
}

func (w *rollingWindow) sweep(now time.Time) {
	cutoff := now.Add(-w.window)
	for key, ts := range w.entries {
		if ts = prune(ts, cutoff); len(ts) == 0 {
			delete(w.entries, key)
		} else {
			w.entries[key] = ts
		}
	}
}

func (w *rollingWindow) len() int {
	return len(w.entries)
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(ts); i++ {
		if ts[i].After(cutoff) {
			break
		}
	}
	return ts[i:]
}
