package intrstat

import (
	"log/slog"
	"time"

	"github.com/ja7ad/intrd/pkg/types"
)

// Window is the run of recent deltas. Its total elapsed time is kept at or
// above the horizon once reached: the oldest delta is evicted only while the
// rest still cover the horizon.
type Window struct {
	horizon types.Nanos
	deltas  []*Delta
	total   types.Nanos
}

func NewWindow(horizon time.Duration) *Window {
	return &Window{horizon: types.FromDuration(horizon)}
}

// Push appends d and evicts from the front.
func (w *Window) Push(d *Delta) {
	w.deltas = append(w.deltas, d)
	w.total += d.Elapsed
	for len(w.deltas) > 1 && w.total-w.deltas[0].Elapsed >= w.horizon {
		w.total -= w.deltas[0].Elapsed
		w.deltas[0] = nil
		w.deltas = w.deltas[1:]
	}
}

// Full reports whether the window covers the horizon.
func (w *Window) Full() bool { return w.total >= w.horizon && len(w.deltas) > 0 }

func (w *Window) Clear() {
	w.deltas = nil
	w.total = 0
}

func (w *Window) Len() int { return len(w.deltas) }

func (w *Window) Total() types.Nanos { return w.total }

func (w *Window) Horizon() types.Nanos { return w.horizon }

// Compress returns one delta covering the whole window.
func (w *Window) Compress(logger *slog.Logger) *Delta {
	return Compress(logger, w.deltas)
}
