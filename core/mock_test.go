package core

import (
	"errors"
	"sync/atomic"
)

var errNoTimer = errors.New("no such timer")

type channelKey struct {
	timer TimerID
	ch    Channel
}

// mockRegister is a compare register that reports writes to its driver
type mockRegister struct {
	key   channelKey
	value uint32
	drv   *mockTimers
}

func (r *mockRegister) Set(v uint32) {
	atomic.StoreUint32(&r.value, v)
	r.drv.log("set", r.key.timer, r.key.ch, v)
}

func (r *mockRegister) Get() uint32 {
	return atomic.LoadUint32(&r.value)
}

type mockCall struct {
	op    string
	timer TimerID
	ch    Channel
	value uint32
}

// mockTimers implements TimerDriver. Timers listed in timers exist and have
// four channels each; everything else fails to resolve.
type mockTimers struct {
	timers    map[TimerID]bool
	registers map[channelKey]*mockRegister
	overflows map[TimerID]int
	periods   map[TimerID]uint32
	clocks    map[TimerID]uint32
	running   map[channelKey]bool
	inverted  map[channelKey]bool
	calls     []mockCall
	logWrites bool
}

func newMockTimers(ids ...TimerID) *mockTimers {
	m := &mockTimers{
		timers:    make(map[TimerID]bool),
		registers: make(map[channelKey]*mockRegister),
		overflows: make(map[TimerID]int),
		periods:   make(map[TimerID]uint32),
		clocks:    make(map[TimerID]uint32),
		running:   make(map[channelKey]bool),
		inverted:  make(map[channelKey]bool),
	}
	for _, id := range ids {
		m.timers[id] = true
	}
	return m
}

func (m *mockTimers) log(op string, timer TimerID, ch Channel, v uint32) {
	if op == "set" && !m.logWrites {
		return
	}
	m.calls = append(m.calls, mockCall{op: op, timer: timer, ch: ch, value: v})
}

func (m *mockTimers) ConfigureTimeBase(timer TimerID, period uint32, clockMHz uint32) error {
	if !m.timers[timer] {
		return errNoTimer
	}
	m.periods[timer] = period
	m.clocks[timer] = clockMHz
	m.log("timebase", timer, 0, period)
	return nil
}

func (m *mockTimers) ConfigureChannel(timer TimerID, ch Channel, initial uint32, inverted bool) error {
	r, err := m.CompareRegister(timer, ch)
	if err != nil {
		return err
	}
	atomic.StoreUint32(&r.(*mockRegister).value, initial)
	m.inverted[channelKey{timer, ch}] = inverted
	m.log("channel", timer, ch, initial)
	return nil
}

func (m *mockTimers) StartChannel(timer TimerID, ch Channel) error {
	m.running[channelKey{timer, ch}] = true
	m.log("start", timer, ch, 0)
	return nil
}

func (m *mockTimers) StopChannel(timer TimerID, ch Channel) error {
	m.running[channelKey{timer, ch}] = false
	m.log("stop", timer, ch, 0)
	return nil
}

func (m *mockTimers) StartBase(timer TimerID) error {
	m.log("base", timer, 0, 0)
	return nil
}

func (m *mockTimers) ForceOverflow(timer TimerID) {
	m.overflows[timer]++
	m.log("overflow", timer, 0, 0)
}

func (m *mockTimers) CompareRegister(timer TimerID, ch Channel) (CompareRegister, error) {
	if !m.timers[timer] || ch > 3 {
		return nil, errNoTimer
	}
	key := channelKey{timer, ch}
	r, ok := m.registers[key]
	if !ok {
		r = &mockRegister{key: key, drv: m}
		m.registers[key] = r
	}
	return r, nil
}

// reg reads a compare register value directly
func (m *mockTimers) reg(timer TimerID, ch Channel) uint32 {
	if r, ok := m.registers[channelKey{timer, ch}]; ok {
		return r.Get()
	}
	return 0
}

type pinCall struct {
	pin   GPIOPin
	af    uint8
	pull  Pull
	speed Speed
}

type mockPins struct {
	calls []pinCall
	fail  bool
}

func (p *mockPins) ConfigureAlternateFunction(pin GPIOPin, af uint8, pull Pull, speed Speed) error {
	if p.fail {
		return errors.New("pin unavailable")
	}
	p.calls = append(p.calls, pinCall{pin, af, pull, speed})
	return nil
}

// desc builds an enabled descriptor for a timer channel
func desc(timer TimerID, ch Channel) ChannelDescriptor {
	return ChannelDescriptor{
		Timer:   timer,
		Channel: ch,
		Pin:     GPIOPin(uint32(timer)*4 + uint32(ch)),
		Flags:   OutputEnabled,
	}
}
