package protocol

import "errors"

// ErrArgumentRange is returned when a decoded argument does not fit its
// declared %c or %hu width
var ErrArgumentRange = errors.New("argument out of range")

// Output command IDs. The board registers OutputCommands in this order, so
// the host can address commands without downloading a dictionary.
const (
	CmdConfigBrushedMotor uint16 = iota
	CmdConfigBrushlessMotor
	CmdConfigOneshotMotor
	CmdConfigServo
	CmdSetMotor
	CmdSetServo
	CmdCompleteOneshot
	CmdShutdownMotors
	CmdDisableMotors
	CmdEnableMotors
	CmdEmergencyStop
)

// Descriptor flag bits carried in the flags argument
const (
	FlagOutputEnabled = 1 << 0
	FlagInverted      = 1 << 1
)

// OneshotMax is the largest pulse a oneshot timer can hold
const OneshotMax = 0xFFFF

// CommandSpec names one output command and its argument format
type CommandSpec struct {
	ID     uint16
	Name   string
	Format string
}

const channelArgs = "index=%c timer=%c channel=%c pin=%u af=%c flags=%c"

// OutputCommands is the shared command table
var OutputCommands = []CommandSpec{
	{CmdConfigBrushedMotor, "config_brushed_motor", channelArgs + " rate=%hu pulse=%hu"},
	{CmdConfigBrushlessMotor, "config_brushless_motor", channelArgs + " rate=%hu pulse=%hu"},
	{CmdConfigOneshotMotor, "config_oneshot_motor", channelArgs},
	{CmdConfigServo, "config_servo", channelArgs + " rate=%hu pulse=%hu"},
	{CmdSetMotor, "set_motor", "index=%c value=%hu"},
	{CmdSetServo, "set_servo", "index=%c value=%hu"},
	{CmdCompleteOneshot, "complete_oneshot", "count=%c"},
	{CmdShutdownMotors, "shutdown_motors", "count=%c"},
	{CmdDisableMotors, "disable_motors", ""},
	{CmdEnableMotors, "enable_motors", ""},
	{CmdEmergencyStop, "emergency_stop", "count=%c"},
}

// LookupCommand returns the spec for a command name
func LookupCommand(name string) (CommandSpec, bool) {
	for _, c := range OutputCommands {
		if c.Name == name {
			return c, true
		}
	}
	return CommandSpec{}, false
}

// ChannelArgs is the wire form of a timer channel descriptor
type ChannelArgs struct {
	Index       uint8
	Timer       uint8
	Channel     uint8
	Pin         uint32
	AltFunction uint8
	Flags       uint8
}

// EncodeChannelArgs writes the shared channel arguments
func EncodeChannelArgs(output OutputBuffer, a ChannelArgs) {
	EncodeVLQUint(output, uint32(a.Index))
	EncodeVLQUint(output, uint32(a.Timer))
	EncodeVLQUint(output, uint32(a.Channel))
	EncodeVLQUint(output, a.Pin)
	EncodeVLQUint(output, uint32(a.AltFunction))
	EncodeVLQUint(output, uint32(a.Flags))
}

// DecodeChannelArgs reads the shared channel arguments. Byte-wide fields
// that do not fit are rejected rather than truncated.
func DecodeChannelArgs(data *[]byte) (ChannelArgs, error) {
	var a ChannelArgs
	var err error
	if a.Index, err = DecodeUint8(data); err != nil {
		return ChannelArgs{}, err
	}
	if a.Timer, err = DecodeUint8(data); err != nil {
		return ChannelArgs{}, err
	}
	if a.Channel, err = DecodeUint8(data); err != nil {
		return ChannelArgs{}, err
	}
	if a.Pin, err = DecodeVLQUint(data); err != nil {
		return ChannelArgs{}, err
	}
	if a.AltFunction, err = DecodeUint8(data); err != nil {
		return ChannelArgs{}, err
	}
	if a.Flags, err = DecodeUint8(data); err != nil {
		return ChannelArgs{}, err
	}
	return a, nil
}

// DecodeUint8 reads a %c argument
func DecodeUint8(data *[]byte) (uint8, error) {
	v, err := DecodeVLQUint(data)
	if err != nil {
		return 0, err
	}
	if v > 0xFF {
		return 0, ErrArgumentRange
	}
	return uint8(v), nil
}

// DecodeUint16 reads a %hu argument
func DecodeUint16(data *[]byte) (uint16, error) {
	v, err := DecodeVLQUint(data)
	if err != nil {
		return 0, err
	}
	if v > 0xFFFF {
		return 0, ErrArgumentRange
	}
	return uint16(v), nil
}

// DecodeCount reads a %c count argument, saturating at 0xFF. Counts only
// bound a loop over outputs, so an oversized count means "all of them".
func DecodeCount(data *[]byte) (uint8, error) {
	v, err := DecodeVLQUint(data)
	if err != nil {
		return 0, err
	}
	return uint8(min(v, 0xFF)), nil
}
