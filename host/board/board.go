// Package board drives a flight controller's outputs over the serial link.
package board

import (
	"fmt"
	"io"
	"time"

	"flightpwm/core"
	"flightpwm/host/serial"
	"flightpwm/protocol"
)

// Client is a connection to a board running the output command table
type Client struct {
	// Transport layer
	transport *protocol.HostTransport

	// Connection state
	connected bool
	timeout   time.Duration
}

// NewClient creates a new Client (not yet connected)
func NewClient() *Client {
	return &Client{
		timeout: protocol.DefaultAckTimeout,
	}
}

// Connect connects to a board via serial port
func (c *Client) Connect(device string) error {
	return c.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects to a board with a custom serial config
func (c *Client) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return fmt.Errorf("failed to flush serial port: %w", err)
	}

	c.ConnectPort(port)

	// Give the board time to initialize (if it just powered on)
	time.Sleep(100 * time.Millisecond)

	return nil
}

// ConnectPort attaches the client to an already open link
func (c *Client) ConnectPort(port io.ReadWriteCloser) {
	c.transport = protocol.NewHostTransport(port)
	c.connected = true
}

// SetTimeout sets how long each command waits for its ACK
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Close closes the connection to the board
func (c *Client) Close() error {
	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			return err
		}
	}
	c.connected = false
	return nil
}

// IsConnected returns whether the board is connected
func (c *Client) IsConnected() bool {
	return c.connected
}

// SendCommand sends a command from the output table by name
func (c *Client) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	if !c.connected {
		return fmt.Errorf("not connected to board")
	}

	spec, ok := protocol.LookupCommand(name)
	if !ok {
		return fmt.Errorf("unknown command: %s", name)
	}

	if err := c.transport.SendCommandWithTimeout(spec.ID, args, c.timeout); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func channelArgs(index uint8, desc core.ChannelDescriptor) protocol.ChannelArgs {
	a := protocol.ChannelArgs{
		Index:       index,
		Timer:       uint8(desc.Timer),
		Channel:     uint8(desc.Channel),
		Pin:         uint32(desc.Pin),
		AltFunction: desc.AltFunction,
	}
	if desc.Enabled() {
		a.Flags |= protocol.FlagOutputEnabled
	}
	if desc.Inverted() {
		a.Flags |= protocol.FlagInverted
	}
	return a
}

func (c *Client) configure(name string, index uint8, desc core.ChannelDescriptor, rate, pulse uint16) error {
	return c.SendCommand(name, func(output protocol.OutputBuffer) {
		protocol.EncodeChannelArgs(output, channelArgs(index, desc))
		protocol.EncodeVLQUint(output, uint32(rate))
		protocol.EncodeVLQUint(output, uint32(pulse))
	})
}

// ConfigureBrushedMotor binds a motor index to a brushed PWM channel on the board
func (c *Client) ConfigureBrushedMotor(index uint8, desc core.ChannelDescriptor, rate uint16, idlePulse uint16) error {
	return c.configure("config_brushed_motor", index, desc, rate, idlePulse)
}

// ConfigureBrushlessMotor binds a motor index to an ESC PWM channel on the board
func (c *Client) ConfigureBrushlessMotor(index uint8, desc core.ChannelDescriptor, rate uint16, idlePulse uint16) error {
	return c.configure("config_brushless_motor", index, desc, rate, idlePulse)
}

// ConfigureOneshotMotor binds a motor index to a oneshot channel on the board
func (c *Client) ConfigureOneshotMotor(index uint8, desc core.ChannelDescriptor) error {
	return c.SendCommand("config_oneshot_motor", func(output protocol.OutputBuffer) {
		protocol.EncodeChannelArgs(output, channelArgs(index, desc))
	})
}

// ConfigureServo binds a servo index to a PWM channel on the board
func (c *Client) ConfigureServo(index uint8, desc core.ChannelDescriptor, rate uint16, centerPulse uint16) error {
	return c.configure("config_servo", index, desc, rate, centerPulse)
}

func (c *Client) sendValue(name string, index uint8, value uint16) error {
	return c.SendCommand(name, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(index))
		protocol.EncodeVLQUint(output, uint32(value))
	})
}

func (c *Client) sendCount(name string, count uint8) error {
	return c.SendCommand(name, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(count))
	})
}

// WriteMotor sets a motor value
func (c *Client) WriteMotor(index uint8, value uint16) error {
	return c.sendValue("set_motor", index, value)
}

// WriteServo sets a servo pulse
func (c *Client) WriteServo(index uint8, value uint16) error {
	return c.sendValue("set_servo", index, value)
}

// CompleteOneshotCycle rearms the first count oneshot motors
func (c *Client) CompleteOneshotCycle(count uint8) error {
	return c.sendCount("complete_oneshot", count)
}

// ShutdownPulses zeroes the first count motor outputs
func (c *Client) ShutdownPulses(count uint8) error {
	return c.sendCount("shutdown_motors", count)
}

// DisableMotors closes the board's motor gate
func (c *Client) DisableMotors() error {
	return c.SendCommand("disable_motors", nil)
}

// EnableMotors opens the board's motor gate
func (c *Client) EnableMotors() error {
	return c.SendCommand("enable_motors", nil)
}

// EmergencyStop disables motors and zeroes the first count motor outputs
func (c *Client) EmergencyStop(count uint8) error {
	return c.sendCount("emergency_stop", count)
}
