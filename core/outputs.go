package core

// Timer clock rates in MHz for each output protocol
type Clocks struct {
	PWM     uint32 // Brushless ESC and servo PWM
	Brushed uint32 // Brushed motor PWM
	Oneshot uint32 // Oneshot125 free-running timebase
}

// DefaultClocks returns the standard timer clocks
func DefaultClocks() Clocks {
	return Clocks{
		PWM:     1,
		Brushed: 8,
		Oneshot: 8,
	}
}

// OneshotPeriod is the full 16-bit free-running count used by oneshot timers
const OneshotPeriod = 0xFFFF

// BrushedRateThreshold is the motor rate above which the brushed protocol applies
const BrushedRateThreshold = 500

// Config sizes the output engine
type Config struct {
	MaxMotors int
	MaxServos int
	Clocks    Clocks
}

// Outputs owns the port registry, the motor and servo dispatch tables and
// the motor enable gate. One instance is created at startup and passed to
// the control loop.
type Outputs struct {
	registry *Registry
	motors   []*OutputPort
	servos   []*OutputPort
	clocks   Clocks
	gate     MotorGate
}

// NewOutputs creates an output engine with room for cfg.MaxMotors motors and
// cfg.MaxServos servos. Zero clocks fall back to DefaultClocks.
func NewOutputs(cfg Config, timers TimerDriver, pins PinDriver) *Outputs {
	clocks := cfg.Clocks
	def := DefaultClocks()
	if clocks.PWM == 0 {
		clocks.PWM = def.PWM
	}
	if clocks.Brushed == 0 {
		clocks.Brushed = def.Brushed
	}
	if clocks.Oneshot == 0 {
		clocks.Oneshot = def.Oneshot
	}

	o := &Outputs{
		registry: NewRegistry(cfg.MaxMotors+cfg.MaxServos, timers, pins),
		motors:   make([]*OutputPort, cfg.MaxMotors),
		servos:   make([]*OutputPort, cfg.MaxServos),
		clocks:   clocks,
	}
	o.gate.Enable()
	return o
}

// Registry returns the underlying port registry
func (o *Outputs) Registry() *Registry {
	return o.registry
}

// Clocks returns the timer clocks in use
func (o *Outputs) Clocks() Clocks {
	return o.clocks
}

// MotorCapacity returns the size of the motor dispatch table
func (o *Outputs) MotorCapacity() int {
	return len(o.motors)
}

// ServoCapacity returns the size of the servo dispatch table
func (o *Outputs) ServoCapacity() int {
	return len(o.servos)
}

// Motor returns the port bound to a motor index, or nil
func (o *Outputs) Motor(index uint8) *OutputPort {
	if int(index) >= len(o.motors) {
		return nil
	}
	return o.motors[index]
}

// Servo returns the port bound to a servo index, or nil
func (o *Outputs) Servo(index uint8) *OutputPort {
	if int(index) >= len(o.servos) {
		return nil
	}
	return o.servos[index]
}

// IsMotorBrushed reports whether a motor rate selects the brushed protocol
func IsMotorBrushed(rate uint16) bool {
	return rate > BrushedRateThreshold
}

// ConfigureBrushedMotor binds a motor index to a brushed PWM channel
// running at rate Hz. idlePulse is loaded before the channel starts.
func (o *Outputs) ConfigureBrushedMotor(index uint8, desc ChannelDescriptor, rate uint16, idlePulse uint16) error {
	if rate == 0 {
		return o.configError(KindMotor, index, desc, ErrInvalidRate)
	}
	period := o.clocks.Brushed * 1000000 / uint32(rate)
	return o.bindMotor(index, desc, o.clocks.Brushed, period, uint32(idlePulse), StrategyBrushed)
}

// ConfigureBrushlessMotor binds a motor index to a standard ESC PWM channel
// running at rate Hz.
func (o *Outputs) ConfigureBrushlessMotor(index uint8, desc ChannelDescriptor, rate uint16, idlePulse uint16) error {
	if rate == 0 {
		return o.configError(KindMotor, index, desc, ErrInvalidRate)
	}
	period := o.clocks.PWM * 1000000 / uint32(rate)
	return o.bindMotor(index, desc, o.clocks.PWM, period, uint32(idlePulse), StrategyStandard)
}

// ConfigureOneshotMotor binds a motor index to a free-running oneshot
// channel. The timer is restarted by CompleteOneshotCycle every loop.
func (o *Outputs) ConfigureOneshotMotor(index uint8, desc ChannelDescriptor) error {
	return o.bindMotor(index, desc, o.clocks.Oneshot, OneshotPeriod, 0, StrategyStandard)
}

// ConfigureServo binds a servo index to a PWM channel running at rate Hz
// with microsecond ticks. centerPulse is loaded before the channel starts.
func (o *Outputs) ConfigureServo(index uint8, desc ChannelDescriptor, rate uint16, centerPulse uint16) error {
	if int(index) >= len(o.servos) {
		return o.configError(KindServo, index, desc, ErrIndexOutOfRange)
	}
	if rate == 0 {
		return o.configError(KindServo, index, desc, ErrInvalidRate)
	}
	port, err := o.registry.ConfigurePort(desc, o.clocks.PWM, 1000000/uint32(rate), uint32(centerPulse))
	if err != nil {
		return o.configError(KindServo, index, desc, err)
	}
	o.servos[index] = port
	o.record(EvtConfigure, KindServo, index, uint32(desc.Timer), port.period)
	return nil
}

func (o *Outputs) bindMotor(index uint8, desc ChannelDescriptor, clockMHz, period, initial uint32, strategy WriteStrategy) error {
	if int(index) >= len(o.motors) {
		return o.configError(KindMotor, index, desc, ErrIndexOutOfRange)
	}
	port, err := o.registry.ConfigurePort(desc, clockMHz, period, initial)
	if err != nil {
		return o.configError(KindMotor, index, desc, err)
	}
	port.strategy = strategy
	o.motors[index] = port
	o.record(EvtConfigure, KindMotor, index, uint32(desc.Timer), period)
	return nil
}

// configError wraps a configuration failure. Capacity exhaustion is passed
// through so callers can match ErrCapacityExceeded directly.
func (o *Outputs) configError(kind OutputKind, index uint8, desc ChannelDescriptor, err error) error {
	o.record(EvtConfigFault, kind, index, uint32(desc.Timer), uint32(desc.Channel))
	DebugPrintln("[PWM] configure " + kind.String() + " " + itoa(int(index)) + " failed: " + err.Error())
	if err == ErrCapacityExceeded {
		return err
	}
	return &ConfigurationError{
		Kind:    kind,
		Index:   index,
		Timer:   desc.Timer,
		Channel: desc.Channel,
		Err:     err,
	}
}

// WriteMotor stores a commanded value on a motor output.
// Dropped while motors are disabled or when the index is not configured.
func (o *Outputs) WriteMotor(index uint8, value uint16) {
	if int(index) >= len(o.motors) || !o.gate.Enabled() {
		return
	}
	if p := o.motors[index]; p != nil {
		p.write(value)
	}
}

// WriteServo stores a pulse value on a servo output.
// Servos ignore the motor enable gate.
func (o *Outputs) WriteServo(index uint8, value uint16) {
	if int(index) >= len(o.servos) {
		return
	}
	if p := o.servos[index]; p != nil {
		p.ccr.Set(uint32(value))
	}
}
