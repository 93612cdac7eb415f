package pcitool

import (
	"context"
	"sync"
)

// Fake records moves instead of performing them.
type Fake struct {
	mu     sync.Mutex
	moves  []MoveRequest
	failed []MoveRequest

	// Fail, when set, decides per request whether the move errors.
	Fail func(MoveRequest) error

	APIC    bool
	APICErr error
}

var _ Binder = (*Fake)(nil)

func NewFake() *Fake { return &Fake{APIC: true} }

func (f *Fake) MoveIntr(ctx context.Context, req MoveRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		if err := f.Fail(req); err != nil {
			f.failed = append(f.failed, req)
			return err
		}
	}
	f.moves = append(f.moves, req)
	return nil
}

func (f *Fake) IsAPIC(string) (bool, error) {
	return f.APIC, f.APICErr
}

// Moves returns the successful moves in order.
func (f *Fake) Moves() []MoveRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MoveRequest(nil), f.moves...)
}

// Failed returns the rejected moves in order.
func (f *Fake) Failed() []MoveRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MoveRequest(nil), f.failed...)
}

// Reset forgets recorded moves.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.moves, f.failed = nil, nil
	f.mu.Unlock()
}
