// Package balance scores how evenly interrupt load is spread across CPUs,
// decides when the spread has degraded enough to act on, and plans the
// interrupt moves that even it out.
package balance

import (
	"math"

	"github.com/ja7ad/intrd/pkg/intrstat"
	"github.com/ja7ad/intrd/pkg/system/util"
)

// Goodness is the ratio of the lowest to the highest per-CPU interrupt load
// fraction: 1.0 when every CPU carries the same share, towards 0 as the
// spread widens. eps floors each CPU's busy time, in nanoseconds.
func Goodness(d *intrstat.Delta, eps float64) float64 {
	if len(d.CPUs) == 0 {
		return 1
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range d.CPUs {
		l := c.Load(eps)
		lo = math.Min(lo, l)
		hi = math.Max(hi, l)
	}
	if hi <= 0 {
		return 1
	}
	return util.Clamp01(lo / hi)
}

// GoodnessCPU is one CPU's interrupt load fraction; zero for a CPU absent
// from the delta.
func GoodnessCPU(d *intrstat.Delta, cpu intrstat.CPUID, eps float64) float64 {
	c, ok := d.CPUs[cpu]
	if !ok {
		return 0
	}
	return c.Load(eps)
}
