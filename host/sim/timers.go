// Package sim provides a software timer peripheral so the output engine can
// run on a host without hardware.
package sim

import (
	"errors"
	"sync"
	"sync/atomic"

	"flightpwm/core"
)

// ErrNoSuchChannel is returned for a timer or channel the simulator does not have
var ErrNoSuchChannel = errors.New("sim: no such timer channel")

type register struct {
	value uint32
}

func (r *register) Set(v uint32) { atomic.StoreUint32(&r.value, v) }
func (r *register) Get() uint32  { return atomic.LoadUint32(&r.value) }

type channel struct {
	ccr        register
	configured bool
	enabled    bool
	inverted   bool
	pulses     uint64
	lastPulse  uint32
}

type timer struct {
	period    uint32
	clockMHz  uint32
	counter   uint32
	overflows uint64
	running   bool
	channels  []channel
}

// overflow emits one pulse on every enabled channel holding a non-zero
// compare value and restarts the count.
func (t *timer) overflow() {
	t.counter = 0
	t.overflows++
	for i := range t.channels {
		ch := &t.channels[i]
		if !ch.enabled {
			continue
		}
		if v := ch.ccr.Get(); v != 0 {
			ch.pulses++
			ch.lastPulse = v
		}
	}
}

// PinConfig records one pin routed to a timer
type PinConfig struct {
	Pin         core.GPIOPin
	AltFunction uint8
	Pull        core.Pull
	Speed       core.Speed
}

// Timers is a bank of simulated timers. It implements core.TimerDriver and
// core.PinDriver. Compare registers are atomic; everything else is guarded
// by a mutex so Snapshot can run beside the command loop.
type Timers struct {
	mu     sync.Mutex
	timers []timer
	pins   []PinConfig
}

// NewTimers creates numTimers timers with channelsPerTimer compare channels each
func NewTimers(numTimers, channelsPerTimer int) *Timers {
	s := &Timers{timers: make([]timer, numTimers)}
	for i := range s.timers {
		s.timers[i].channels = make([]channel, channelsPerTimer)
	}
	return s
}

func (s *Timers) lookup(id core.TimerID) (*timer, error) {
	if int(id) >= len(s.timers) {
		return nil, ErrNoSuchChannel
	}
	return &s.timers[id], nil
}

func (s *Timers) lookupChannel(id core.TimerID, ch core.Channel) (*channel, error) {
	t, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if int(ch) >= len(t.channels) {
		return nil, ErrNoSuchChannel
	}
	return &t.channels[ch], nil
}

// ConfigureTimeBase sets the timer period and tick rate
func (s *Timers) ConfigureTimeBase(id core.TimerID, period uint32, clockMHz uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(id)
	if err != nil {
		return err
	}
	t.period = period
	t.clockMHz = clockMHz
	return nil
}

// ConfigureChannel loads the initial compare value and polarity
func (s *Timers) ConfigureChannel(id core.TimerID, ch core.Channel, initial uint32, inverted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookupChannel(id, ch)
	if err != nil {
		return err
	}
	c.ccr.Set(initial)
	c.inverted = inverted
	c.configured = true
	return nil
}

// StartChannel enables the channel output
func (s *Timers) StartChannel(id core.TimerID, ch core.Channel) error {
	return s.setEnabled(id, ch, true)
}

// StopChannel disables the channel output
func (s *Timers) StopChannel(id core.TimerID, ch core.Channel) error {
	return s.setEnabled(id, ch, false)
}

func (s *Timers) setEnabled(id core.TimerID, ch core.Channel, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookupChannel(id, ch)
	if err != nil {
		return err
	}
	c.enabled = enabled
	return nil
}

// StartBase starts the counter
func (s *Timers) StartBase(id core.TimerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(id)
	if err != nil {
		return err
	}
	t.running = true
	return nil
}

// ForceOverflow completes the current cycle immediately
func (s *Timers) ForceOverflow(id core.TimerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, err := s.lookup(id); err == nil {
		t.overflow()
	}
}

// CompareRegister returns the compare register of a channel
func (s *Timers) CompareRegister(id core.TimerID, ch core.Channel) (core.CompareRegister, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookupChannel(id, ch)
	if err != nil {
		return nil, err
	}
	return &c.ccr, nil
}

// ConfigureAlternateFunction records the pin routing
func (s *Timers) ConfigureAlternateFunction(pin core.GPIOPin, af uint8, pull core.Pull, speed core.Speed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins = append(s.pins, PinConfig{Pin: pin, AltFunction: af, Pull: pull, Speed: speed})
	return nil
}

// Advance runs every started timer forward by ticks. Each wrap past the
// period counts as one overflow.
func (s *Timers) Advance(ticks uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.timers {
		t := &s.timers[i]
		if !t.running || t.period == 0 {
			continue
		}
		remaining := uint64(t.counter) + uint64(ticks)
		for remaining > uint64(t.period) {
			remaining -= uint64(t.period) + 1
			t.overflow()
		}
		t.counter = uint32(remaining)
	}
}

// ChannelState is a point-in-time view of one channel
type ChannelState struct {
	Channel   core.Channel
	Compare   uint32
	Enabled   bool
	Inverted  bool
	Pulses    uint64
	LastPulse uint32
}

// TimerState is a point-in-time view of one configured timer
type TimerState struct {
	Timer     core.TimerID
	Period    uint32
	ClockMHz  uint32
	Counter   uint32
	Overflows uint64
	Running   bool
	Channels  []ChannelState
}

// Snapshot returns every timer with at least one configured channel, by id
func (s *Timers) Snapshot() []TimerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []TimerState
	for i := range s.timers {
		t := &s.timers[i]
		state := TimerState{
			Timer:     core.TimerID(i),
			Period:    t.period,
			ClockMHz:  t.clockMHz,
			Counter:   t.counter,
			Overflows: t.overflows,
			Running:   t.running,
		}
		for j := range t.channels {
			c := &t.channels[j]
			if !c.configured {
				continue
			}
			state.Channels = append(state.Channels, ChannelState{
				Channel:   core.Channel(j),
				Compare:   c.ccr.Get(),
				Enabled:   c.enabled,
				Inverted:  c.inverted,
				Pulses:    c.pulses,
				LastPulse: c.lastPulse,
			})
		}
		if len(state.Channels) > 0 {
			out = append(out, state)
		}
	}
	return out
}

// Pins returns the pin routing log in configuration order
func (s *Timers) Pins() []PinConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PinConfig(nil), s.pins...)
}
