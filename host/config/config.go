// Package config loads a board output map and applies it to an output
// engine, local or remote.
package config

import (
	"errors"
	"fmt"
	"os"

	"flightpwm/core"

	"gopkg.in/yaml.v3"
)

// Motor protocols
const (
	ProtocolBrushless = "brushless"
	ProtocolBrushed   = "brushed"
	ProtocolOneshot   = "oneshot"
)

// Defaults applied to omitted fields
const (
	DefaultMotorRate   = 400
	DefaultServoRate   = 50
	DefaultIdlePulse   = 1000
	DefaultCenterPulse = 1500
)

// Output is the hardware behind one motor or servo
type Output struct {
	Timer       uint8  `yaml:"timer"`
	Channel     uint8  `yaml:"channel"`
	Pin         uint32 `yaml:"pin"`
	AltFunction uint8  `yaml:"af"`
	Inverted    bool   `yaml:"inverted"`
	Disabled    bool   `yaml:"disabled"`
}

// Descriptor converts the output into an engine channel descriptor
func (o Output) Descriptor() core.ChannelDescriptor {
	d := core.ChannelDescriptor{
		Timer:       core.TimerID(o.Timer),
		Channel:     core.Channel(o.Channel),
		Pin:         core.GPIOPin(o.Pin),
		AltFunction: o.AltFunction,
	}
	if !o.Disabled {
		d.Flags |= core.OutputEnabled
	}
	if o.Inverted {
		d.Flags |= core.OutputInverted
	}
	return d
}

// MotorConfig describes one motor output
type MotorConfig struct {
	Output   `yaml:",inline"`
	Protocol string `yaml:"protocol"`
	Rate     uint16 `yaml:"rate"`
	Idle     uint16 `yaml:"idle"`
}

// ServoConfig describes one servo output
type ServoConfig struct {
	Output `yaml:",inline"`
	Rate   uint16 `yaml:"rate"`
	Center uint16 `yaml:"center"`
}

// ClockConfig overrides the timer clocks in MHz
type ClockConfig struct {
	PWM     uint32 `yaml:"pwm"`
	Brushed uint32 `yaml:"brushed"`
	Oneshot uint32 `yaml:"oneshot"`
}

// BoardConfig is the output map of one flight controller
type BoardConfig struct {
	Name      string        `yaml:"name"`
	MaxMotors int           `yaml:"max_motors"`
	MaxServos int           `yaml:"max_servos"`
	Clocks    ClockConfig   `yaml:"clocks"`
	Motors    []MotorConfig `yaml:"motors"`
	Servos    []ServoConfig `yaml:"servos"`
}

// EngineConfig returns the engine sizing for this board
func (b *BoardConfig) EngineConfig() core.Config {
	return core.Config{
		MaxMotors: b.MaxMotors,
		MaxServos: b.MaxServos,
		Clocks: core.Clocks{
			PWM:     b.Clocks.PWM,
			Brushed: b.Clocks.Brushed,
			Oneshot: b.Clocks.Oneshot,
		},
	}
}

// Load reads a board configuration file
func Load(path string) (*BoardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML (or JSON) board configuration and fills in defaults
func Parse(data []byte) (*BoardConfig, error) {
	var config BoardConfig

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyDefaults fills in missing configuration values
func applyDefaults(config *BoardConfig) {
	if config.Name == "" {
		config.Name = "board"
	}

	// Dispatch tables sized to what is listed
	if config.MaxMotors == 0 {
		config.MaxMotors = len(config.Motors)
	}
	if config.MaxServos == 0 {
		config.MaxServos = len(config.Servos)
	}

	for i := range config.Motors {
		m := &config.Motors[i]
		if m.Protocol == ProtocolOneshot {
			continue
		}
		if m.Rate == 0 {
			m.Rate = DefaultMotorRate
		}
		if m.Protocol == "" {
			if core.IsMotorBrushed(m.Rate) {
				m.Protocol = ProtocolBrushed
			} else {
				m.Protocol = ProtocolBrushless
			}
		}
		if m.Idle == 0 {
			m.Idle = DefaultIdlePulse
		}
	}

	for i := range config.Servos {
		s := &config.Servos[i]
		if s.Rate == 0 {
			s.Rate = DefaultServoRate
		}
		if s.Center == 0 {
			s.Center = DefaultCenterPulse
		}
	}
}

func validate(config *BoardConfig) error {
	if len(config.Motors) > config.MaxMotors {
		return fmt.Errorf("%d motors listed but max_motors is %d", len(config.Motors), config.MaxMotors)
	}
	if len(config.Servos) > config.MaxServos {
		return fmt.Errorf("%d servos listed but max_servos is %d", len(config.Servos), config.MaxServos)
	}
	for i, m := range config.Motors {
		switch m.Protocol {
		case ProtocolBrushless, ProtocolBrushed, ProtocolOneshot:
		default:
			return fmt.Errorf("motor %d: unknown protocol %q", i, m.Protocol)
		}
	}
	return nil
}

// Configurer is anything that can bind outputs: the local engine or a
// remote board.
type Configurer interface {
	ConfigureBrushedMotor(index uint8, desc core.ChannelDescriptor, rate uint16, idlePulse uint16) error
	ConfigureBrushlessMotor(index uint8, desc core.ChannelDescriptor, rate uint16, idlePulse uint16) error
	ConfigureOneshotMotor(index uint8, desc core.ChannelDescriptor) error
	ConfigureServo(index uint8, desc core.ChannelDescriptor, rate uint16, centerPulse uint16) error
}

// Disarmer is implemented by configurers that can close the motor gate
// locally. Remote boards disarm themselves on a failed configuration.
type Disarmer interface {
	DisableMotors()
}

// Apply configures every motor then every servo in order. All outputs are
// attempted; if any fails the motors are disabled and the failures are
// returned joined.
func Apply(config *BoardConfig, c Configurer) error {
	var errs []error

	for i, m := range config.Motors {
		index := uint8(i)
		desc := m.Descriptor()

		var err error
		switch m.Protocol {
		case ProtocolBrushed:
			err = c.ConfigureBrushedMotor(index, desc, m.Rate, m.Idle)
		case ProtocolOneshot:
			err = c.ConfigureOneshotMotor(index, desc)
		default:
			err = c.ConfigureBrushlessMotor(index, desc, m.Rate, m.Idle)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("motor %d: %w", i, err))
		}
	}

	for i, s := range config.Servos {
		if err := c.ConfigureServo(uint8(i), s.Descriptor(), s.Rate, s.Center); err != nil {
			errs = append(errs, fmt.Errorf("servo %d: %w", i, err))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	if d, ok := c.(Disarmer); ok {
		d.DisableMotors()
	}
	return errors.Join(errs...)
}

// DefaultQuadConfig returns a quadcopter layout: four ESCs on timer 1 and
// two servos on timer 2
func DefaultQuadConfig() *BoardConfig {
	config := &BoardConfig{
		Name: "quad",
		Motors: []MotorConfig{
			{Output: Output{Timer: 1, Channel: 0, Pin: 0}},
			{Output: Output{Timer: 1, Channel: 1, Pin: 1}},
			{Output: Output{Timer: 1, Channel: 2, Pin: 2}},
			{Output: Output{Timer: 1, Channel: 3, Pin: 3}},
		},
		Servos: []ServoConfig{
			{Output: Output{Timer: 2, Channel: 0, Pin: 4}},
			{Output: Output{Timer: 2, Channel: 1, Pin: 5}},
		},
	}
	applyDefaults(config)
	return config
}
