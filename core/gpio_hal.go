package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// Pull selects the pin's pull resistor
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Speed selects the pin's output slew rate
type Speed uint8

const (
	SpeedLow Speed = iota
	SpeedMedium
	SpeedHigh
)

// PinDriver is the GPIO abstraction used to hand a pin to its timer.
type PinDriver interface {
	// ConfigureAlternateFunction routes a pin to the peripheral function af
	ConfigureAlternateFunction(pin GPIOPin, af uint8, pull Pull, speed Speed) error
}
