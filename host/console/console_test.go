package console

import (
	"bytes"
	"testing"
	"time"

	"flightpwm/core"
	"flightpwm/host/board"
	"flightpwm/host/config"
	"flightpwm/host/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimConsole(t *testing.T) (*Console, *sim.Board, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultQuadConfig()
	b, err := sim.NewBoard(cfg.EngineConfig(), 4, 4)
	require.NoError(t, err)

	client := board.NewClient()
	client.SetTimeout(time.Second)
	client.ConnectPort(b.Connect())
	t.Cleanup(func() { client.Close() })

	require.NoError(t, config.Apply(cfg, client))

	var out bytes.Buffer
	return New(client, b, uint8(len(cfg.Motors)), &out), b, &out
}

func TestConsoleMotorAndServo(t *testing.T) {
	c, b, out := newSimConsole(t)

	assert.False(t, c.Execute("motor 2 1600"))
	assert.False(t, c.Execute("s 1 0x5dc"))
	assert.Equal(t, uint32(1600), b.Outputs.Motor(2).Compare())
	assert.Equal(t, uint32(1500), b.Outputs.Servo(1).Compare())
	assert.Contains(t, out.String(), "ok")
}

func TestConsoleGateCommands(t *testing.T) {
	c, b, _ := newSimConsole(t)

	c.Execute("motor 0 1700")
	c.Execute("disable")
	c.Execute("motor 0 1900")
	assert.Equal(t, uint32(1700), b.Outputs.Motor(0).Compare())

	c.Execute("enable")
	c.Execute("motor 0 1900")
	assert.Equal(t, uint32(1900), b.Outputs.Motor(0).Compare())

	c.Execute("estop")
	assert.False(t, b.Outputs.MotorsEnabled())
	for i := uint8(0); i < 4; i++ {
		assert.Equal(t, uint32(0), b.Outputs.Motor(i).Compare())
	}
}

func TestConsoleShutdownCount(t *testing.T) {
	c, b, _ := newSimConsole(t)

	c.Execute("shutdown 1")
	assert.Equal(t, uint32(0), b.Outputs.Motor(0).Compare())
	assert.Equal(t, uint32(1000), b.Outputs.Motor(1).Compare())
}

func TestConsoleStatusAndAdvance(t *testing.T) {
	c, _, out := newSimConsole(t)

	c.Execute("advance 2501")
	c.Execute("status")
	s := out.String()
	assert.Contains(t, s, "motors: enabled  ports: 6/6")
	assert.Contains(t, s, "timer 1: period=2500 clock=1MHz counter=0 overflows=1")
	assert.Contains(t, s, "ch0 [on] ccr=1000 pulses=1 last=1000")
}

func TestConsoleErrors(t *testing.T) {
	c, _, out := newSimConsole(t)

	c.Execute("motor 1")
	assert.Contains(t, out.String(), "Usage: motor|servo")

	out.Reset()
	c.Execute("motor x 1000")
	assert.Contains(t, out.String(), `invalid number "x"`)

	out.Reset()
	c.Execute("servo 0 70000")
	assert.Contains(t, out.String(), "invalid number")

	out.Reset()
	c.Execute("fly")
	assert.Contains(t, out.String(), "Unknown command: fly")

	out.Reset()
	c.Execute(`motor "0 1000`)
	assert.Contains(t, out.String(), "Error:")

	assert.False(t, c.Execute("   "))
	assert.True(t, c.Execute("quit"))
}

type nopTarget struct{ writes int }

func (n *nopTarget) WriteMotor(index uint8, value uint16) error { n.writes++; return nil }
func (n *nopTarget) WriteServo(index uint8, value uint16) error { n.writes++; return nil }
func (n *nopTarget) CompleteOneshotCycle(count uint8) error     { return nil }
func (n *nopTarget) ShutdownPulses(count uint8) error           { return nil }
func (n *nopTarget) DisableMotors() error                       { return nil }
func (n *nopTarget) EnableMotors() error                        { return nil }
func (n *nopTarget) EmergencyStop(count uint8) error            { return nil }

func TestConsoleHardwareModeHidesSimulator(t *testing.T) {
	var out bytes.Buffer
	target := &nopTarget{}
	c := New(target, nil, 4, &out)

	c.Execute("status")
	c.Execute("advance 10")
	c.Execute("events")
	assert.Contains(t, out.String(), "only available in simulator mode")

	c.Execute("m 0 1000")
	assert.Equal(t, 1, target.writes)
}

func TestConsoleEvents(t *testing.T) {
	core.ClearEventRing()
	defer core.ClearEventRing()
	c, _, out := newSimConsole(t)

	out.Reset()
	c.Execute("events")
	assert.Contains(t, out.String(), "type=1 motor=0")
}
