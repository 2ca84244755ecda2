package sim

import (
	"errors"
	"io"
	"net"
	"sync"

	"flightpwm/core"
	"flightpwm/protocol"
)

// Board runs the firmware command loop against simulated timers
type Board struct {
	Timers   *Timers
	Outputs  *core.Outputs
	registry *core.CommandRegistry

	mu     sync.Mutex
	errors []error
}

// NewBoard creates a simulated board with the given engine sizing
func NewBoard(cfg core.Config, numTimers, channelsPerTimer int) (*Board, error) {
	timers := NewTimers(numTimers, channelsPerTimer)
	outputs := core.NewOutputs(cfg, timers, timers)

	reg := core.NewCommandRegistry()
	if err := core.InitOutputCommands(reg, outputs); err != nil {
		return nil, err
	}

	return &Board{
		Timers:   timers,
		Outputs:  outputs,
		registry: reg,
	}, nil
}

// Serve reads frames from conn, dispatches them and writes ACKs back until
// conn is closed.
func (b *Board) Serve(conn io.ReadWriter) error {
	out := protocol.NewScratchOutput()
	tr := protocol.NewTransport(out, func(cmdID uint16, data *[]byte) error {
		return b.registry.Dispatch(cmdID, data)
	})
	tr.SetErrorCallback(func(cmdID uint16, err error) {
		b.mu.Lock()
		b.errors = append(b.errors, err)
		b.mu.Unlock()
	})

	in := protocol.NewFifoBuffer(protocol.MessageMax)
	buf := make([]byte, 128)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
		in.Write(buf[:n])
		tr.Receive(in)

		if res := out.Result(); len(res) > 0 {
			if _, err := conn.Write(res); err != nil {
				return err
			}
			out.Reset()
		}
	}
}

// Connect starts serving one end of an in-memory pipe and returns the other
func (b *Board) Connect() net.Conn {
	host, board := net.Pipe()
	go func() {
		b.Serve(board)
		board.Close()
	}()
	return host
}

// Errors returns command errors reported by the link, oldest first
func (b *Board) Errors() []error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]error(nil), b.errors...)
}
