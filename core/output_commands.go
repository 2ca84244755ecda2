package core

import (
	"errors"

	"flightpwm/protocol"
)

// InitOutputCommands registers the output command table against an engine.
// The registry must be empty so IDs line up with protocol.OutputCommands.
func InitOutputCommands(reg *CommandRegistry, o *Outputs) error {
	handlers := map[uint16]CommandHandler{
		protocol.CmdConfigBrushedMotor:   o.handleConfigMotor(o.ConfigureBrushedMotor),
		protocol.CmdConfigBrushlessMotor: o.handleConfigMotor(o.ConfigureBrushlessMotor),
		protocol.CmdConfigOneshotMotor:   o.handleConfigOneshotMotor,
		protocol.CmdConfigServo:          o.handleConfigServo,
		protocol.CmdSetMotor:             o.handleSetMotor,
		protocol.CmdSetServo:             o.handleSetServo,
		protocol.CmdCompleteOneshot:      o.handleCompleteOneshot,
		protocol.CmdShutdownMotors:       o.handleShutdownMotors,
		protocol.CmdDisableMotors:        o.handleDisableMotors,
		protocol.CmdEnableMotors:         o.handleEnableMotors,
		protocol.CmdEmergencyStop:        o.handleEmergencyStop,
	}

	for _, spec := range protocol.OutputCommands {
		id := reg.Register(spec.Name, spec.Format, handlers[spec.ID])
		if id != spec.ID {
			return errors.New("command " + spec.Name + " registered as " + itoa(int(id)) +
				", expected " + itoa(int(spec.ID)))
		}
	}
	return nil
}

// descriptorFromArgs converts wire channel arguments into a descriptor
func descriptorFromArgs(a protocol.ChannelArgs) ChannelDescriptor {
	d := ChannelDescriptor{
		Timer:       TimerID(a.Timer),
		Channel:     Channel(a.Channel),
		Pin:         GPIOPin(a.Pin),
		AltFunction: a.AltFunction,
	}
	if a.Flags&protocol.FlagOutputEnabled != 0 {
		d.Flags |= OutputEnabled
	}
	if a.Flags&protocol.FlagInverted != 0 {
		d.Flags |= OutputInverted
	}
	return d
}

// decodeRatePulse decodes the trailing rate=%hu pulse=%hu arguments
func decodeRatePulse(data *[]byte) (uint16, uint16, error) {
	rate, err := protocol.DecodeUint16(data)
	if err != nil {
		return 0, 0, err
	}
	pulse, err := protocol.DecodeUint16(data)
	if err != nil {
		return 0, 0, err
	}
	return rate, pulse, nil
}

// armFault keeps motors disabled after a failed configuration
func (o *Outputs) armFault(err error) error {
	o.DisableMotors()
	return err
}

// handleConfigMotor builds a handler for config_brushed_motor / config_brushless_motor
// Format: index=%c timer=%c channel=%c pin=%u af=%c flags=%c rate=%hu pulse=%hu
func (o *Outputs) handleConfigMotor(configure func(uint8, ChannelDescriptor, uint16, uint16) error) CommandHandler {
	return func(data *[]byte) error {
		args, err := protocol.DecodeChannelArgs(data)
		if err != nil {
			return o.armFault(err)
		}
		rate, pulse, err := decodeRatePulse(data)
		if err != nil {
			return o.armFault(err)
		}
		if err := configure(args.Index, descriptorFromArgs(args), rate, pulse); err != nil {
			return o.armFault(err)
		}
		return nil
	}
}

// handleConfigOneshotMotor configures a oneshot motor
// Format: index=%c timer=%c channel=%c pin=%u af=%c flags=%c
func (o *Outputs) handleConfigOneshotMotor(data *[]byte) error {
	args, err := protocol.DecodeChannelArgs(data)
	if err != nil {
		return o.armFault(err)
	}
	if err := o.ConfigureOneshotMotor(args.Index, descriptorFromArgs(args)); err != nil {
		return o.armFault(err)
	}
	return nil
}

// handleConfigServo configures a servo output
// Format: index=%c timer=%c channel=%c pin=%u af=%c flags=%c rate=%hu pulse=%hu
func (o *Outputs) handleConfigServo(data *[]byte) error {
	args, err := protocol.DecodeChannelArgs(data)
	if err != nil {
		return o.armFault(err)
	}
	rate, pulse, err := decodeRatePulse(data)
	if err != nil {
		return o.armFault(err)
	}
	if err := o.ConfigureServo(args.Index, descriptorFromArgs(args), rate, pulse); err != nil {
		return o.armFault(err)
	}
	return nil
}

// handleSetMotor writes a motor value
// Format: index=%c value=%hu
func (o *Outputs) handleSetMotor(data *[]byte) error {
	index, err := protocol.DecodeUint8(data)
	if err != nil {
		return err
	}
	value, err := protocol.DecodeUint16(data)
	if err != nil {
		return err
	}
	o.WriteMotor(index, value)
	return nil
}

// handleSetServo writes a servo value
// Format: index=%c value=%hu
func (o *Outputs) handleSetServo(data *[]byte) error {
	index, err := protocol.DecodeUint8(data)
	if err != nil {
		return err
	}
	value, err := protocol.DecodeUint16(data)
	if err != nil {
		return err
	}
	o.WriteServo(index, value)
	return nil
}

// handleCompleteOneshot rearms oneshot timers
// Format: count=%c
func (o *Outputs) handleCompleteOneshot(data *[]byte) error {
	count, err := protocol.DecodeCount(data)
	if err != nil {
		return err
	}
	o.CompleteOneshotCycle(count)
	return nil
}

// handleShutdownMotors zeroes motor pulses
// Format: count=%c
func (o *Outputs) handleShutdownMotors(data *[]byte) error {
	count, err := protocol.DecodeCount(data)
	if err != nil {
		return err
	}
	o.ShutdownPulses(count)
	return nil
}

func (o *Outputs) handleDisableMotors(data *[]byte) error {
	o.DisableMotors()
	return nil
}

func (o *Outputs) handleEnableMotors(data *[]byte) error {
	o.EnableMotors()
	return nil
}

// handleEmergencyStop disables the gate and zeroes every motor pulse
// Format: count=%c
func (o *Outputs) handleEmergencyStop(data *[]byte) error {
	count, err := protocol.DecodeCount(data)
	if err != nil {
		// A garbled stop still stops every motor
		count = 0xFF
	}
	o.DisableMotors()
	o.ShutdownPulses(count)
	return err
}
