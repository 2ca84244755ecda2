package core

// Descriptor flags
const (
	OutputEnabled  = 1 << 0 // Channel drives its pin after configuration
	OutputInverted = 1 << 1 // Active-low pulse
)

// ChannelDescriptor identifies the hardware behind one output:
// which timer and compare channel, which pin, and how the pin is muxed.
type ChannelDescriptor struct {
	Timer       TimerID
	Channel     Channel
	Pin         GPIOPin
	AltFunction uint8 // Pin alternate function routing the timer channel
	Flags       uint8 // OutputEnabled, OutputInverted
}

// Enabled reports whether the channel should toggle after configuration
func (d ChannelDescriptor) Enabled() bool {
	return d.Flags&OutputEnabled != 0
}

// Inverted reports whether the channel is active-low
func (d ChannelDescriptor) Inverted() bool {
	return d.Flags&OutputInverted != 0
}

// OutputPort is one timer channel bound for pulse generation.
// Timer and register never change once the port is allocated.
type OutputPort struct {
	ccr      CompareRegister
	timer    TimerID
	period   uint32
	strategy WriteStrategy
	desc     ChannelDescriptor
}

// Timer returns the physical timer driving this port
func (p *OutputPort) Timer() TimerID { return p.timer }

// Period returns the configured period in timer ticks
func (p *OutputPort) Period() uint32 { return p.period }

// Strategy returns the port's write strategy
func (p *OutputPort) Strategy() WriteStrategy { return p.strategy }

// Descriptor returns the descriptor the port was configured from
func (p *OutputPort) Descriptor() ChannelDescriptor { return p.desc }

// Compare returns the current compare register value
func (p *OutputPort) Compare() uint32 { return p.ccr.Get() }

// write applies the port's strategy and stores the result
func (p *OutputPort) write(value uint16) {
	p.ccr.Set(p.strategy.Transform(value, p.period))
}

// zero clears the compare register, stopping pulses after the next overflow
func (p *OutputPort) zero() {
	p.ccr.Set(0)
}

// Registry is a fixed-capacity pool of output ports.
// Ports are handed out in allocation order and never released.
type Registry struct {
	ports     []OutputPort
	allocated int
	timers    TimerDriver
	pins      PinDriver
}

// NewRegistry creates a registry holding up to capacity ports
func NewRegistry(capacity int, timers TimerDriver, pins PinDriver) *Registry {
	return &Registry{
		ports:  make([]OutputPort, capacity),
		timers: timers,
		pins:   pins,
	}
}

// Capacity returns the pool size
func (r *Registry) Capacity() int {
	return len(r.ports)
}

// Allocated returns the number of ports handed out so far
func (r *Registry) Allocated() int {
	return r.allocated
}

// Port returns the i-th allocated port, or nil
func (r *Registry) Port(i int) *OutputPort {
	if i < 0 || i >= r.allocated {
		return nil
	}
	return &r.ports[i]
}

// ConfigurePort programs a timer channel for pulse output and binds it to
// the next free registry slot.
// clockMHz: timer tick rate, period: ticks per pulse cycle,
// initial: compare value loaded before the channel starts toggling.
// A slot is only consumed when every hardware step succeeds.
func (r *Registry) ConfigurePort(desc ChannelDescriptor, clockMHz uint32, period uint32, initial uint32) (*OutputPort, error) {
	if r.allocated >= len(r.ports) {
		return nil, ErrCapacityExceeded
	}

	// Resolve first: an unknown timer must not leave a half-bound port
	ccr, err := r.timers.CompareRegister(desc.Timer, desc.Channel)
	if err != nil {
		return nil, err
	}

	if err := r.timers.ConfigureTimeBase(desc.Timer, period, clockMHz); err != nil {
		return nil, err
	}

	if r.pins != nil {
		if err := r.pins.ConfigureAlternateFunction(desc.Pin, desc.AltFunction, PullDown, SpeedLow); err != nil {
			return nil, err
		}
	}

	if err := r.timers.ConfigureChannel(desc.Timer, desc.Channel, initial, desc.Inverted()); err != nil {
		return nil, err
	}

	if desc.Enabled() {
		err = r.timers.StartChannel(desc.Timer, desc.Channel)
	} else {
		err = r.timers.StopChannel(desc.Timer, desc.Channel)
	}
	if err != nil {
		return nil, err
	}

	if err := r.timers.StartBase(desc.Timer); err != nil {
		return nil, err
	}

	p := &r.ports[r.allocated]
	r.allocated++

	p.ccr = ccr
	p.timer = desc.Timer
	p.period = period
	p.strategy = StrategyStandard
	p.desc = desc

	return p, nil
}
