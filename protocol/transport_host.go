package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultAckTimeout bounds how long SendCommand waits for the board's ACK
const DefaultAckTimeout = 2 * time.Second

// ErrTransportClosed is returned by calls made after Close
var ErrTransportClosed = errors.New("transport stopped")

// HostTransport is the host side of the link: it frames commands with the
// current sequence, waits for the matching ACK and advances the sequence.
type HostTransport struct {
	port io.ReadWriteCloser

	currentSeq     uint32 // atomic, 0x10-0x1F
	isSynchronized uint32 // atomic bool

	input   *FifoBuffer
	ackChan chan Message

	writeMutex sync.Mutex

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewHostTransport creates a host-side transport and starts its reader
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:           port,
		currentSeq:     MessageDest,
		isSynchronized: 1,
		input:          NewFifoBuffer(512),
		ackChan:        make(chan Message, 1),
		stopChan:       make(chan struct{}),
		doneChan:       make(chan struct{}),
	}

	go t.readLoop()

	return t
}

// SendCommand sends a command and waits for its ACK
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, DefaultAckTimeout)
}

// SendCommandWithTimeout sends a command with a custom ACK timeout
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	seq := uint8(atomic.LoadUint32(&t.currentSeq))
	msg, err := BuildCommandFrame(seq, cmdID, args)
	if err != nil {
		return err
	}

	n, err := t.port.Write(msg)
	if err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}

	if err := t.waitForAck(seq, timeout); err != nil {
		return fmt.Errorf("ACK timeout or error: %w", err)
	}
	return nil
}

// BuildCommandFrame encodes one command into a complete frame
func BuildCommandFrame(seq uint8, cmdID uint16, args func(output OutputBuffer)) ([]byte, error) {
	scratch := NewScratchOutput()
	EncodeFrame(scratch, seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})

	frame := scratch.Result()
	if len(frame) > MessageLengthMax {
		return nil, fmt.Errorf("message too long: %d bytes (max %d)", len(frame), MessageLengthMax)
	}

	out := make([]byte, len(frame))
	copy(out, frame)
	return out, nil
}

// waitForAck waits for the ACK that names the sequence after seq
func (t *HostTransport) waitForAck(seq uint8, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	want := nextSeq(seq)
	for {
		select {
		case ack := <-t.ackChan:
			if ack.Sequence != want {
				// Stale ACK/NAK from an earlier exchange
				continue
			}
			atomic.StoreUint32(&t.currentSeq, uint32(want))
			return nil

		case <-timer.C:
			return fmt.Errorf("no ACK after %v", timeout)

		case <-t.stopChan:
			return ErrTransportClosed
		}
	}
}

// readLoop continuously reads from the port and collects ACKs
func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)
	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n == 0 {
			continue
		}

		t.input.Write(buffer[:n])
		consumed := scanFrames(t.input.Data(), &t.isSynchronized, nil, t.dispatchMessage)
		t.input.Pop(consumed)
	}
}

// dispatchMessage forwards ACKs; the board sends no other frames
func (t *HostTransport) dispatchMessage(msg Message) {
	if !msg.IsAck() {
		return
	}
	select {
	case t.ackChan <- msg:
	default:
		// Replace an unread ACK with the newer one
		select {
		case <-t.ackChan:
		default:
		}
		t.ackChan <- msg
	}
}

// Close stops the transport and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}

// Reset resets the transport state (useful after errors)
func (t *HostTransport) Reset() {
	atomic.StoreUint32(&t.isSynchronized, 1)
	atomic.StoreUint32(&t.currentSeq, MessageDest)
	for len(t.ackChan) > 0 {
		<-t.ackChan
	}
}

// CurrentSequence returns the current sequence number (for debugging)
func (t *HostTransport) CurrentSequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}
