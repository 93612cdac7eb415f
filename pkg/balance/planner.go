package balance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ja7ad/intrd/pkg/intrstat"
	"github.com/ja7ad/intrd/pkg/pcitool"
	"github.com/ja7ad/intrd/pkg/system/util"
)

// Outcome is the result of one planning cycle.
type Outcome int

const (
	Failed         Outcome = -1
	AlreadyOptimal Outcome = 0
	Reconfigured   Outcome = 1
)

func (o Outcome) String() string {
	switch o {
	case Failed:
		return "failed"
	case AlreadyOptimal:
		return "already_optimal"
	case Reconfigured:
		return "reconfigured"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Mover performs one privileged interrupt move.
type Mover interface {
	MoveIntr(ctx context.Context, req pcitool.MoveRequest) error
}

// PlannerConfig bounds one planning cycle.
type PlannerConfig struct {
	// MinLoadGap is the load fraction spread between the most and least
	// loaded CPU at or under which nothing is moved.
	MinLoadGap float64
	// MaxMoves bounds attempted moves, failed ones included.
	MaxMoves int
	// Eps floors CPU busy time, in nanoseconds.
	Eps float64
}

// Move is one attempted move.
type Move struct {
	Req   pcitool.MoveRequest
	Ivecs []*intrstat.IvecDelta
	Err   error
}

// Result is what a cycle did. Projected is the goodness the working copy
// predicts after the successful moves.
type Result struct {
	Outcome   Outcome
	Moves     []Move
	Failures  []Move
	Projected float64
}

// Planner moves interrupts from the most to the least loaded CPUs.
//
// Each step takes the most loaded CPU h and tries destinations from least
// loaded up. For a destination d the transfer that equalizes the two is
//
//	t* = (I_h*T_d - I_d*T_h) / (T_h + T_d)
//
// where I is interrupt time and T busy time over the compressed delta. The
// unit on h with the largest service time t <= t* is moved, so h never ends
// up below d. Ties prefer the smaller sibling count, then the lowest key.
// Vectors sharing an ino with num_ino > 1 form one unit and move together.
type Planner struct {
	cfg    PlannerConfig
	mover  Mover
	logger *slog.Logger
}

func NewPlanner(cfg PlannerConfig, mover Mover, logger *slog.Logger) *Planner {
	if cfg.MaxMoves <= 0 {
		cfg.MaxMoves = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{cfg: cfg, mover: mover, logger: logger}
}

type unit struct {
	key     intrstat.IvecKey
	busPath string
	ino     uint64
	numIno  uint64
	members []*intrstat.IvecDelta
}

// on returns the service time the unit puts on cpu.
func (u *unit) on(cpu intrstat.CPUID) float64 {
	var t float64
	for _, m := range u.members {
		if m.CPU == cpu {
			t += float64(m.Time)
		}
	}
	return t
}

type workCPU struct {
	id    intrstat.CPUID
	tot   float64
	intrs float64
}

type state struct {
	cpus  map[intrstat.CPUID]*workCPU
	units []*unit
	eps   float64
}

func (s *state) load(id intrstat.CPUID) float64 {
	c := s.cpus[id]
	return util.SafeDiv(c.intrs, c.tot, s.eps)
}

// byLoad returns CPU ids by ascending load, ties by id.
func (s *state) byLoad() []intrstat.CPUID {
	ids := make([]intrstat.CPUID, 0, len(s.cpus))
	for id := range s.cpus {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		li, lj := s.load(ids[i]), s.load(ids[j])
		if li != lj {
			return li < lj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// apply moves every member of u to dst in the working copy.
func (s *state) apply(u *unit, dst intrstat.CPUID) {
	for _, m := range u.members {
		if src, ok := s.cpus[m.CPU]; ok {
			src.intrs -= float64(m.Time)
		}
		s.cpus[dst].intrs += float64(m.Time)
		m.CPU = dst
	}
}

func (s *state) goodness() float64 {
	ids := s.byLoad()
	if len(ids) == 0 {
		return 1
	}
	hi := s.load(ids[len(ids)-1])
	if hi <= 0 {
		return 1
	}
	return util.Clamp01(s.load(ids[0]) / hi)
}

type groupKey struct {
	busPath string
	ino     uint64
}

func newState(cd *intrstat.Delta, eps float64) *state {
	s := &state{cpus: make(map[intrstat.CPUID]*workCPU, len(cd.CPUs)), eps: eps}
	groups := make(map[groupKey]*unit)
	for _, id := range cd.SortedCPUs() {
		c := cd.CPUs[id]
		s.cpus[id] = &workCPU{id: id, tot: float64(c.Tot), intrs: float64(c.Intrs)}
		for _, iv := range c.SortedIvecs() {
			cp := *iv
			if iv.NumIno > 1 {
				gk := groupKey{iv.Key.BusPath, iv.Key.Ino}
				if u, ok := groups[gk]; ok {
					u.members = append(u.members, &cp)
					continue
				}
				u := &unit{key: iv.Key, busPath: iv.Key.BusPath, ino: iv.Key.Ino, numIno: iv.NumIno, members: []*intrstat.IvecDelta{&cp}}
				groups[gk] = u
				s.units = append(s.units, u)
				continue
			}
			s.units = append(s.units, &unit{key: iv.Key, busPath: iv.Key.BusPath, ino: iv.Key.Ino, numIno: iv.NumIno, members: []*intrstat.IvecDelta{&cp}})
		}
	}
	return s
}

// bestFit picks the unit on hot to move to dst, or nil.
func (s *state) bestFit(hot, dst intrstat.CPUID, excluded map[*unit]bool) (*unit, float64) {
	h, d := s.cpus[hot], s.cpus[dst]
	th, td := max(h.tot, s.eps), max(d.tot, s.eps)
	limit := (h.intrs*td - d.intrs*th) / (th + td)
	if limit <= 0 {
		return nil, 0
	}

	var best *unit
	var bestT float64
	for _, u := range s.units {
		if excluded[u] {
			continue
		}
		t := u.on(hot)
		if t <= 0 {
			continue
		}
		// Siblings elsewhere land on dst too without relieving hot.
		extra := 0.0
		for _, m := range u.members {
			if m.CPU != hot && m.CPU != dst {
				extra += float64(m.Time)
			}
		}
		if t+extra*th/(th+td) > limit {
			continue
		}
		switch {
		case best == nil, t > bestT:
		case t == bestT && u.numIno < best.numIno:
		case t == bestT && u.numIno == best.numIno && u.key.Less(best.key):
		default:
			continue
		}
		best, bestT = u, t
	}
	return best, bestT
}

// Reconfigure plans and applies moves for a compressed delta.
func (p *Planner) Reconfigure(ctx context.Context, cd *intrstat.Delta) Result {
	s := newState(cd, p.cfg.Eps)
	res := Result{Outcome: AlreadyOptimal}
	if len(s.cpus) < 2 {
		res.Projected = s.goodness()
		return res
	}

	excluded := make(map[*unit]bool)
	imbalancedAtStart := false
	for attempt := 0; attempt < p.cfg.MaxMoves; attempt++ {
		if ctx.Err() != nil {
			break
		}
		order := s.byLoad()
		hot, cold := order[len(order)-1], order[0]
		gap := s.load(hot) - s.load(cold)
		if gap <= p.cfg.MinLoadGap {
			break
		}
		if attempt == 0 {
			imbalancedAtStart = true
		}

		var u *unit
		var dst intrstat.CPUID
		for _, cand := range order[:len(order)-1] {
			if best, _ := s.bestFit(hot, cand, excluded); best != nil {
				u, dst = best, cand
				break
			}
		}
		if u == nil {
			break
		}

		req := pcitool.MoveRequest{BusPath: u.busPath, OldCPU: int(hot), CPU: int(dst), Ino: u.ino, NumIno: u.numIno}
		mv := Move{Req: req, Ivecs: append([]*intrstat.IvecDelta(nil), u.members...)}
		if err := p.mover.MoveIntr(ctx, req); err != nil {
			mv.Err = err
			res.Failures = append(res.Failures, mv)
			excluded[u] = true
			p.logger.Warn("interrupt move failed", "ivecs", intrstat.IvecsString(mv.Ivecs), "from", int(hot), "to", int(dst), "error", err)
			continue
		}
		s.apply(u, dst)
		res.Moves = append(res.Moves, mv)
		p.logger.Info("moved interrupt", "ivecs", intrstat.IvecsString(mv.Ivecs), "from", int(hot), "to", int(dst),
			"load_from", fmt.Sprintf("%.3f", s.load(hot)), "load_to", fmt.Sprintf("%.3f", s.load(dst)))
	}

	res.Projected = s.goodness()
	switch {
	case len(res.Moves) > 0:
		res.Outcome = Reconfigured
	case len(res.Failures) > 0, imbalancedAtStart:
		res.Outcome = Failed
	}
	return res
}
