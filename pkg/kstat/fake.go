package kstat

import (
	"fmt"
	"sync"
)

type fakeEntry struct {
	ks   Kstat
	data Data
}

// Fake is an in-memory Handle. It is safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	entries map[string]*fakeEntry
	updates int

	// OnUpdate, when set, runs on every Update without the lock held, so it
	// may call Set and Remove.
	OnUpdate func(f *Fake) error
}

var _ Handle = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{entries: make(map[string]*fakeEntry)}
}

// Set creates or replaces a kstat.
func (f *Fake) Set(ks Kstat, snaptime, crtime uint64, named map[string]Value) {
	d := Data{Snaptime: snaptime, Crtime: crtime, Named: named}
	f.mu.Lock()
	f.entries[ks.String()] = &fakeEntry{ks: ks, data: *d.clone()}
	f.mu.Unlock()
}

// Remove deletes a kstat; missing entries are ignored.
func (f *Fake) Remove(module string, instance int, name string) {
	key := Kstat{Module: module, Instance: instance, Name: name}.String()
	f.mu.Lock()
	delete(f.entries, key)
	f.mu.Unlock()
}

// Reset drops every kstat.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.entries = make(map[string]*fakeEntry)
	f.mu.Unlock()
}

// Updates returns how many times Update was called.
func (f *Fake) Updates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

func (f *Fake) Update() error {
	f.mu.Lock()
	f.updates++
	hook := f.OnUpdate
	f.mu.Unlock()
	if hook != nil {
		return hook(f)
	}
	return nil
}

func (f *Fake) Filter(module string, instance int, name string) []*Kstat {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Kstat
	for _, e := range f.entries {
		if matches(&e.ks, module, instance, name) {
			ks := e.ks
			out = append(out, &ks)
		}
	}
	sortKstats(out)
	return out
}

func (f *Fake) Read(ks *Kstat) (*Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[ks.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ks)
	}
	return e.data.clone(), nil
}
