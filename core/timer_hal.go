package core

// TimerID identifies one physical timer peripheral (STM32 TIMx, RP2040 PWM slice)
type TimerID uint8

// Channel identifies a compare channel within a timer
type Channel uint8

// CompareRegister is a directly writable handle to one channel's compare
// register. Writes take effect on the next timer period.
type CompareRegister interface {
	Set(value uint32)
	Get() uint32
}

// TimerDriver is the timer abstraction the output engine configures.
// Platform-specific implementations handle actual hardware control.
type TimerDriver interface {
	// ConfigureTimeBase programs the timer to count period ticks at clockMHz
	ConfigureTimeBase(timer TimerID, period uint32, clockMHz uint32) error

	// ConfigureChannel puts a channel in PWM compare mode with the given
	// initial compare value. inverted selects active-low output.
	ConfigureChannel(timer TimerID, ch Channel, initial uint32, inverted bool) error

	// StartChannel enables pulse generation on a channel
	StartChannel(timer TimerID, ch Channel) error

	// StopChannel disables pulse generation on a channel
	StopChannel(timer TimerID, ch Channel) error

	// StartBase starts the timer's base counter
	StartBase(timer TimerID) error

	// ForceOverflow makes the timer finish its current cycle and restart from zero
	ForceOverflow(timer TimerID)

	// CompareRegister resolves the writable compare register for a channel.
	// Returns an error if the timer or channel does not exist.
	CompareRegister(timer TimerID, ch Channel) (CompareRegister, error)
}
