package kstat

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of statistics snapshots. Counters are
// cumulative, as the kernel reports them.
//
//	steps:
//	  - snaptime: 10000000000
//	    cpus:
//	      - {id: 0, user: 100, kernel: 200, idle: 700}
//	    intrs:
//	      - {instance: 1, nexus: npe, cpu: 0, time: 90, ino: 32, buspath: /pci@0,0, name: e1000g}
type Scenario struct {
	Steps []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is the kernel's state at one Update. Entries without their
// own snaptime inherit the step's.
type ScenarioStep struct {
	Snaptime uint64     `yaml:"snaptime"`
	CPUs     []CPUStat  `yaml:"cpus"`
	Intrs    []IntrStat `yaml:"intrs"`
}

// ParseScenario decodes a YAML scenario.
func ParseScenario(b []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("kstat: parse scenario: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, errors.New("kstat: scenario has no steps")
	}
	return &s, nil
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(b)
}

// Player is a Handle that replays a Scenario: the first step is visible
// immediately and each Update advances one step.
type Player struct {
	fake  *Fake
	steps []ScenarioStep

	mu   sync.Mutex
	next int
	done chan struct{}
	once sync.Once
}

var _ Handle = (*Player)(nil)

func NewPlayer(s *Scenario) *Player {
	p := &Player{fake: NewFake(), steps: s.Steps, done: make(chan struct{})}
	if len(p.steps) > 0 {
		p.apply(p.steps[0])
		p.next = 1
	}
	return p
}

// Done is closed once Update has been called past the last step.
func (p *Player) Done() <-chan struct{} { return p.done }

// Step returns the index of the step currently visible.
func (p *Player) Step() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next - 1
}

func (p *Player) Update() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next >= len(p.steps) {
		p.once.Do(func() { close(p.done) })
		return ErrScenarioDone
	}
	p.apply(p.steps[p.next])
	p.next++
	return nil
}

func (p *Player) Filter(module string, instance int, name string) []*Kstat {
	return p.fake.Filter(module, instance, name)
}

func (p *Player) Read(ks *Kstat) (*Data, error) {
	return p.fake.Read(ks)
}

func (p *Player) apply(step ScenarioStep) {
	p.fake.Reset()
	for _, c := range step.CPUs {
		if c.Snaptime == 0 {
			c.Snaptime = step.Snaptime
		}
		p.fake.SetCPU(c)
	}
	for _, in := range step.Intrs {
		if in.Snaptime == 0 {
			in.Snaptime = step.Snaptime
		}
		p.fake.SetIntr(in)
	}
}
