package balance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/intrd/pkg/intrstat"
	"github.com/ja7ad/intrd/pkg/pcitool"
)

func newPlanner(mover Mover, maxMoves int) *Planner {
	return NewPlanner(PlannerConfig{MinLoadGap: 0.05, MaxMoves: maxMoves, Eps: eps}, mover, nil)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "already_optimal", AlreadyOptimal.String())
	assert.Equal(t, "reconfigured", Reconfigured.String())
}

func TestPlanner_ScenarioA(t *testing.T) {
	binder := pcitool.NewFake()
	res := newPlanner(binder, 8).Reconfigure(context.Background(), scenarioA())

	require.Equal(t, Reconfigured, res.Outcome)
	moves := binder.Moves()
	require.Len(t, moves, 2)
	assert.Equal(t, pcitool.MoveRequest{BusPath: "/pci@0,0", OldCPU: 0, CPU: 1, Ino: 2, NumIno: 1}, moves[0],
		"best fit: the 0.3 vector, not the largest 0.5")
	assert.Equal(t, pcitool.MoveRequest{BusPath: "/pci@0,0", OldCPU: 0, CPU: 1, Ino: 3, NumIno: 1}, moves[1])
	assert.InDelta(t, 1.0, res.Projected, 1e-9)
	assert.Empty(t, res.Failures)
}

func TestPlanner_MoveBudget(t *testing.T) {
	binder := pcitool.NewFake()
	res := newPlanner(binder, 1).Reconfigure(context.Background(), scenarioA())
	assert.Equal(t, Reconfigured, res.Outcome)
	assert.Len(t, binder.Moves(), 1)
	assert.InDelta(t, 0.4/0.6, res.Projected, 1e-9)
}

func TestPlanner_ScenarioB_Balanced(t *testing.T) {
	var cpus []*intrstat.CPUDelta
	for id := intrstat.CPUID(0); id < 4; id++ {
		cpus = append(cpus, cpuD(id, 4e9, ivd("/p", uint64(id), int(id), 1e9, 1)))
	}
	binder := pcitool.NewFake()
	res := newPlanner(binder, 8).Reconfigure(context.Background(), deltaOf(cpus...))
	assert.Equal(t, AlreadyOptimal, res.Outcome)
	assert.Empty(t, binder.Moves())
}

func TestPlanner_WithinGapIsOptimal(t *testing.T) {
	d := deltaOf(
		cpuD(0, 1e9, ivd("/a", 1, 1, 3e8, 1)),
		cpuD(1, 1e9, ivd("/b", 1, 2, 2.8e8, 1)),
	)
	binder := pcitool.NewFake()
	res := newPlanner(binder, 8).Reconfigure(context.Background(), d)
	assert.Equal(t, AlreadyOptimal, res.Outcome)
	assert.Empty(t, binder.Moves())
}

func TestPlanner_SoloOvershootFails(t *testing.T) {
	d := deltaOf(
		cpuD(0, 1e9, ivd("/a", 1, 1, 9e8, 1)),
		cpuD(1, 1e9, ivd("/b", 1, 2, 1e8, 1)),
	)
	binder := pcitool.NewFake()
	res := newPlanner(binder, 8).Reconfigure(context.Background(), d)
	assert.Equal(t, Failed, res.Outcome)
	assert.Empty(t, binder.Moves())
	assert.Empty(t, binder.Failed())
}

func TestPlanner_ScenarioE_MoveErrors(t *testing.T) {
	boom := errors.New("EIO")

	t.Run("other_move_succeeds", func(t *testing.T) {
		binder := pcitool.NewFake()
		binder.Fail = func(r pcitool.MoveRequest) error {
			if r.Ino == 2 {
				return boom
			}
			return nil
		}
		res := newPlanner(binder, 8).Reconfigure(context.Background(), scenarioA())
		assert.Equal(t, Reconfigured, res.Outcome)
		require.Len(t, res.Failures, 1)
		assert.ErrorIs(t, res.Failures[0].Err, boom)
		assert.Equal(t, uint64(2), res.Failures[0].Req.Ino)
		require.Len(t, binder.Moves(), 1)
		assert.Equal(t, uint64(3), binder.Moves()[0].Ino)
	})

	t.Run("every_move_fails", func(t *testing.T) {
		binder := pcitool.NewFake()
		binder.Fail = func(pcitool.MoveRequest) error { return boom }
		res := newPlanner(binder, 8).Reconfigure(context.Background(), scenarioA())
		assert.Equal(t, Failed, res.Outcome)
		assert.Len(t, binder.Failed(), 2, "each failed vector is tried once")
		assert.Empty(t, res.Moves)
	})
}

func TestPlanner_GroupMovesAsUnit(t *testing.T) {
	d := deltaOf(
		cpuD(0, 1e9,
			ivd("/pci@2,0", 40, 10, 1e8, 2),
			ivd("/pci@2,0", 40, 11, 1e8, 2),
			ivd("/pci@3,0", 1, 12, 5e8, 1),
		),
		cpuD(1, 1e9, ivd("/pci@4,0", 1, 13, 1e8, 1)),
	)
	binder := pcitool.NewFake()
	res := newPlanner(binder, 8).Reconfigure(context.Background(), d)

	require.Equal(t, Reconfigured, res.Outcome)
	require.Len(t, res.Moves, 1)
	assert.Equal(t, pcitool.MoveRequest{BusPath: "/pci@2,0", OldCPU: 0, CPU: 1, Ino: 40, NumIno: 2}, res.Moves[0].Req)
	assert.Len(t, res.Moves[0].Ivecs, 2)
}

func TestPlanner_TieBreaks(t *testing.T) {
	t.Run("smaller_sibling_count", func(t *testing.T) {
		d := deltaOf(
			cpuD(0, 1e9,
				ivd("/a", 1, 1, 1e8, 2),
				ivd("/a", 1, 2, 1e8, 2),
				ivd("/z", 9, 3, 2e8, 1),
			),
			cpuD(1, 1e9),
		)
		binder := pcitool.NewFake()
		newPlanner(binder, 1).Reconfigure(context.Background(), d)
		require.Len(t, binder.Moves(), 1)
		assert.Equal(t, "/z", binder.Moves()[0].BusPath)
	})
	t.Run("lowest_key", func(t *testing.T) {
		d := deltaOf(
			cpuD(0, 1e9, ivd("/b", 1, 1, 2e8, 1), ivd("/a", 1, 2, 2e8, 1)),
			cpuD(1, 1e9),
		)
		binder := pcitool.NewFake()
		newPlanner(binder, 1).Reconfigure(context.Background(), d)
		require.Len(t, binder.Moves(), 1)
		assert.Equal(t, "/a", binder.Moves()[0].BusPath)
	})
	t.Run("lowest_destination_id", func(t *testing.T) {
		d := deltaOf(
			cpuD(0, 1e9, ivd("/a", 1, 1, 4e8, 1), ivd("/a", 2, 2, 4e8, 1)),
			cpuD(2, 1e9),
			cpuD(1, 1e9),
		)
		binder := pcitool.NewFake()
		newPlanner(binder, 1).Reconfigure(context.Background(), d)
		require.Len(t, binder.Moves(), 1)
		assert.Equal(t, 1, binder.Moves()[0].CPU)
	})
}

func TestPlanner_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	binder := pcitool.NewFake()
	res := newPlanner(binder, 8).Reconfigure(ctx, scenarioA())
	assert.Equal(t, AlreadyOptimal, res.Outcome)
	assert.Empty(t, binder.Moves())
}
