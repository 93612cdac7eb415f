package intrstat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// IvecsString renders vectors as "name#cookie(buspath ino N)" joined by
// commas, ordered by key.
func IvecsString(ivecs []*IvecDelta) string {
	sorted := append([]*IvecDelta(nil), ivecs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key.Less(sorted[j].Key) })
	parts := make([]string, 0, len(sorted))
	for _, iv := range sorted {
		parts = append(parts, fmt.Sprintf("%s#%d(%s ino %d)", iv.Name, iv.Key.Cookie, iv.Key.BusPath, iv.Key.Ino))
	}
	return strings.Join(parts, ", ")
}

// SortedIvecs returns a CPU's vectors ordered by key.
func (c *CPUDelta) SortedIvecs() []*IvecDelta {
	out := make([]*IvecDelta, 0, len(c.Ivecs))
	for _, iv := range c.Ivecs {
		out = append(out, iv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// Dump logs a delta at debug level, one record per CPU and per vector.
func Dump(logger *slog.Logger, d *Delta, eps float64) {
	if logger == nil || !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	logger.Debug("delta",
		"elapsed", d.Elapsed.Humanized(),
		"missing", d.Missing,
		"avg_intr_load", fmt.Sprintf("%.3f", d.AvgIntrLoad))
	for _, id := range d.SortedCPUs() {
		c := d.CPUs[id]
		logger.Debug("delta cpu",
			"cpu", int(id),
			"tot", c.Tot.Humanized(),
			"intrs", c.Intrs.Humanized(),
			"bigintr", c.BigIntr.Humanized(),
			"load", fmt.Sprintf("%.3f", c.Load(eps)))
		for _, iv := range c.SortedIvecs() {
			logger.Debug("delta ivec",
				"cpu", int(id),
				"ivec", iv.Key.String(),
				"name", iv.Name,
				"time", iv.Time.Humanized(),
				"num_ino", iv.NumIno)
		}
	}
}
