// Package console provides the interactive command line for driving a
// board's outputs.
package console

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/shlex"

	"flightpwm/core"
	"flightpwm/host/sim"
)

// Target is the output surface the console drives
type Target interface {
	WriteMotor(index uint8, value uint16) error
	WriteServo(index uint8, value uint16) error
	CompleteOneshotCycle(count uint8) error
	ShutdownPulses(count uint8) error
	DisableMotors() error
	EnableMotors() error
	EmergencyStop(count uint8) error
}

// Console handles interactive mode for flightpwm-host.
type Console struct {
	target Target
	board  *sim.Board // nil when attached to hardware
	motors uint8
	out    io.Writer
}

// New creates a console writing to out. motors is the number of motor
// outputs used when a count is omitted. board enables the simulator
// commands.
func New(target Target, board *sim.Board, motors uint8, out io.Writer) *Console {
	return &Console{
		target: target,
		board:  board,
		motors: motors,
		out:    out,
	}
}

// Run starts the interactive command loop on a readline instance.
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pwm> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	c.out = rl.Stdout()
	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			return nil
		}

		if quit := c.Execute(line); quit {
			return nil
		}
	}
}

// Execute runs one command line and reports whether the console should exit
func (c *Console) Execute(line string) bool {
	parts, err := shlex.Split(line)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return false
	}
	if len(parts) == 0 {
		return false
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "motor", "m":
		c.cmdWrite(args, c.target.WriteMotor)

	case "servo", "s":
		c.cmdWrite(args, c.target.WriteServo)

	case "oneshot":
		c.cmdCount(args, c.target.CompleteOneshotCycle)

	case "shutdown":
		c.cmdCount(args, c.target.ShutdownPulses)

	case "estop":
		c.cmdCount(args, c.target.EmergencyStop)

	case "disable":
		c.report(c.target.DisableMotors())

	case "enable":
		c.report(c.target.EnableMotors())

	case "status":
		c.cmdStatus()

	case "advance":
		c.cmdAdvance(args)

	case "events":
		c.cmdEvents()

	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return true

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Output Commands:
  motor <i> <value>  - Write a motor value (gated)
  servo <i> <value>  - Write a servo pulse
  oneshot [count]    - Complete a oneshot cycle
  shutdown [count]   - Zero motor pulses
  disable / enable   - Close or open the motor gate
  estop [count]      - Disable motors and zero their pulses

  Simulator:
    status           - Show timer and channel state
    advance <ticks>  - Run the simulated timers forward
    events           - Show the engine event ring

  quit/exit/q        - Exit`)
}

func (c *Console) report(err error) {
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, "ok")
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func (c *Console) cmdWrite(args []string, write func(uint8, uint16) error) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: motor|servo <index> <value>")
		return
	}
	index, err := parseUint(args[0], 8)
	if err != nil {
		c.report(err)
		return
	}
	value, err := parseUint(args[1], 16)
	if err != nil {
		c.report(err)
		return
	}
	c.report(write(uint8(index), uint16(value)))
}

func (c *Console) cmdCount(args []string, fn func(uint8) error) {
	count := c.motors
	if len(args) > 0 {
		v, err := parseUint(args[0], 8)
		if err != nil {
			c.report(err)
			return
		}
		count = uint8(v)
	}
	c.report(fn(count))
}

func (c *Console) cmdStatus() {
	if c.board == nil {
		fmt.Fprintln(c.out, "status is only available in simulator mode")
		return
	}

	gate := "enabled"
	if !c.board.Outputs.MotorsEnabled() {
		gate = "DISABLED"
	}
	fmt.Fprintf(c.out, "motors: %s  ports: %d/%d\n", gate,
		c.board.Outputs.Registry().Allocated(), c.board.Outputs.Registry().Capacity())

	for _, t := range c.board.Timers.Snapshot() {
		fmt.Fprintf(c.out, "timer %d: period=%d clock=%dMHz counter=%d overflows=%d\n",
			t.Timer, t.Period, t.ClockMHz, t.Counter, t.Overflows)
		for _, ch := range t.Channels {
			state := "on"
			if !ch.Enabled {
				state = "off"
			}
			if ch.Inverted {
				state += ",inverted"
			}
			fmt.Fprintf(c.out, "  ch%d [%s] ccr=%d pulses=%d last=%d\n",
				ch.Channel, state, ch.Compare, ch.Pulses, ch.LastPulse)
		}
	}

	for _, err := range c.board.Errors() {
		fmt.Fprintf(c.out, "board error: %v\n", err)
	}
}

func (c *Console) cmdAdvance(args []string) {
	if c.board == nil {
		fmt.Fprintln(c.out, "advance is only available in simulator mode")
		return
	}
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: advance <ticks>")
		return
	}
	ticks, err := parseUint(args[0], 32)
	if err != nil {
		c.report(err)
		return
	}
	c.board.Timers.Advance(uint32(ticks))
	c.report(nil)
}

func (c *Console) cmdEvents() {
	if c.board == nil {
		fmt.Fprintln(c.out, "events are only available in simulator mode")
		return
	}
	for _, evt := range core.Events() {
		fmt.Fprintf(c.out, "type=%d %s=%d v1=%d v2=%d\n",
			evt.EventType, evt.Kind, evt.Index, evt.Value1, evt.Value2)
	}
}
