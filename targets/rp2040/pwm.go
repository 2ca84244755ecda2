//go:build rp2040

package main

import (
	"errors"
	"machine"

	"flightpwm/core"
)

// RP2040 PWM layout: 8 slices with channels A and B
const (
	numSlices        = 8
	channelsPerSlice = 2
)

var errNoSlice = errors.New("rp2040: no such PWM slice or channel")

// pwmPeripheral is an interface for PWM hardware peripherals
// This abstracts over TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
	SetInverting(channel uint8, inverting bool)
	SetCounter(ctr uint32)
	Enable(enable bool)
}

// sliceCompare is the compare handle of one slice channel. Values are kept
// in engine ticks and rescaled to the slice's TOP on write.
type sliceCompare struct {
	slice   *pwmSlice
	channel uint8
	value   uint32
	enabled bool
}

func (c *sliceCompare) Set(v uint32) {
	c.value = v
	if c.enabled {
		c.apply()
	}
}

func (c *sliceCompare) Get() uint32 {
	return c.value
}

func (c *sliceCompare) apply() {
	s := c.slice
	if s.period == 0 {
		s.pwm.Set(c.channel, 0)
		return
	}
	v := uint64(c.value)
	if v > uint64(s.period) {
		v = uint64(s.period)
	}
	s.pwm.Set(c.channel, uint32(v*uint64(s.pwm.Top())/uint64(s.period)))
}

type pwmSlice struct {
	pwm      pwmPeripheral
	period   uint32 // engine ticks
	channels [channelsPerSlice]sliceCompare
}

// RP2040Timers implements core.TimerDriver and core.PinDriver.
// Each PWM slice is one timer; channel 0 is A and channel 1 is B.
type RP2040Timers struct {
	slices [numSlices]pwmSlice
}

// NewRP2040Timers creates the timer driver
func NewRP2040Timers() *RP2040Timers {
	d := &RP2040Timers{}
	for i := range d.slices {
		s := &d.slices[i]
		s.pwm = getPWMPeripheral(uint8(i))
		for ch := range s.channels {
			s.channels[ch] = sliceCompare{slice: s, channel: uint8(ch)}
		}
	}
	return d
}

func (d *RP2040Timers) lookup(timer core.TimerID, ch core.Channel) (*sliceCompare, error) {
	if int(timer) >= numSlices || int(ch) >= channelsPerSlice {
		return nil, errNoSlice
	}
	return &d.slices[timer].channels[ch], nil
}

// ConfigureTimeBase sets the slice period from engine ticks at clockMHz
func (d *RP2040Timers) ConfigureTimeBase(timer core.TimerID, period uint32, clockMHz uint32) error {
	if int(timer) >= numSlices || clockMHz == 0 {
		return errNoSlice
	}
	s := &d.slices[timer]

	// period_ns = ticks * 1000 / MHz
	ns := uint64(period) * 1000 / uint64(clockMHz)
	if err := s.pwm.Configure(machine.PWMConfig{Period: ns}); err != nil {
		return err
	}
	s.period = period
	return nil
}

// ConfigureChannel sets polarity and loads the initial compare value
func (d *RP2040Timers) ConfigureChannel(timer core.TimerID, ch core.Channel, initial uint32, inverted bool) error {
	c, err := d.lookup(timer, ch)
	if err != nil {
		return err
	}
	c.slice.pwm.SetInverting(c.channel, inverted)
	c.Set(initial)
	return nil
}

// StartChannel drives the channel from its compare value
func (d *RP2040Timers) StartChannel(timer core.TimerID, ch core.Channel) error {
	c, err := d.lookup(timer, ch)
	if err != nil {
		return err
	}
	c.enabled = true
	c.apply()
	return nil
}

// StopChannel holds the channel at its idle level
func (d *RP2040Timers) StopChannel(timer core.TimerID, ch core.Channel) error {
	c, err := d.lookup(timer, ch)
	if err != nil {
		return err
	}
	c.enabled = false
	c.slice.pwm.Set(c.channel, 0)
	return nil
}

// StartBase enables the slice counter
func (d *RP2040Timers) StartBase(timer core.TimerID) error {
	if int(timer) >= numSlices {
		return errNoSlice
	}
	d.slices[timer].pwm.Enable(true)
	return nil
}

// ForceOverflow restarts the slice count so the next pulse begins now
func (d *RP2040Timers) ForceOverflow(timer core.TimerID) {
	if int(timer) < numSlices {
		d.slices[timer].pwm.SetCounter(0)
	}
}

// CompareRegister returns the compare handle for a slice channel
func (d *RP2040Timers) CompareRegister(timer core.TimerID, ch core.Channel) (core.CompareRegister, error) {
	return d.lookup(timer, ch)
}

// ConfigureAlternateFunction puts a pin into PWM function.
// RP2040 pins have a fixed slice mapping, so af, pull and speed are unused:
//
//	Slice: (N >> 1) & 0x7  (divide by 2, mod 8)
//	Channel: N & 1          (even=A, odd=B)
func (d *RP2040Timers) ConfigureAlternateFunction(pin core.GPIOPin, af uint8, pull core.Pull, speed core.Speed) error {
	slice := uint8((uint32(pin) >> 1) & 0x7)
	_, err := d.slices[slice].pwm.Channel(machine.Pin(pin))
	return err
}

// getPWMPeripheral returns the PWM peripheral for a given slice number
// TinyGo defines PWM0-PWM7 as global variables of type *pwmGroup
func getPWMPeripheral(sliceNum uint8) pwmPeripheral {
	switch sliceNum {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	case 7:
		return machine.PWM7
	default:
		// Should never happen with proper masking
		return machine.PWM0
	}
}
