package protocol

import "sync/atomic"

// CommandHandler is a function type for handling decoded commands
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the board side of the link: it validates incoming frames,
// dispatches their commands in order and acknowledges every frame.
type Transport struct {
	isSynchronized uint32 // atomic bool
	nextSequence   uint32 // atomic, expected sequence from host (0x10-0x1F)
	output         OutputBuffer
	handler        CommandHandler
	resetCallback  func() // Called when host reset is detected
	flushCallback  func() // Called to push an ACK out immediately
	errorCallback  func(cmdID uint16, err error)
}

// NewTransport creates a new Transport instance
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		isSynchronized: 1,
		nextSequence:   MessageDest,
		output:         output,
		handler:        handler,
	}
}

// Receive processes buffered input and pops the consumed bytes
func (t *Transport) Receive(input *FifoBuffer) {
	n := scanFrames(input.Data(), &t.isSynchronized, t.encodeAckNak, t.handleMessage)
	input.Pop(n)
}

func (t *Transport) handleMessage(msg Message) {
	if msg.Sequence&^MessageSeqMask != MessageDest {
		t.encodeAckNak()
		return
	}

	// Sequence back at MESSAGE_DEST means the host restarted
	expected := uint8(atomic.LoadUint32(&t.nextSequence))
	if msg.Sequence == MessageDest && expected != MessageDest {
		atomic.StoreUint32(&t.nextSequence, MessageDest)
		expected = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}

	if msg.Sequence == expected {
		atomic.StoreUint32(&t.nextSequence, uint32(nextSeq(msg.Sequence)))
		t.parseFrame(msg.Payload)
	}

	// A mismatched sequence still gets an ACK, which acts as a NAK
	// carrying the expected sequence
	t.encodeAckNak()
}

// parseFrame dispatches every command in a frame.
// A handler error aborts the rest of the frame but keeps the link in sync.
func (t *Transport) parseFrame(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			atomic.StoreUint32(&t.isSynchronized, 0)
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			atomic.StoreUint32(&t.isSynchronized, 0)
			return
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &frame); err != nil {
			if t.errorCallback != nil {
				t.errorCallback(uint16(cmdID), err)
			}
			return
		}
	}
}

// encodeAckNak sends an empty frame carrying the next expected sequence
func (t *Transport) encodeAckNak() {
	EncodeFrame(t.output, uint8(atomic.LoadUint32(&t.nextSequence)), nil)
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// Reset resets the transport state (useful after USB disconnect/reconnect)
func (t *Transport) Reset() {
	atomic.StoreUint32(&t.isSynchronized, 1)
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets a callback to be called when host reset is detected.
// It runs inside Receive while the input is being scanned, so it must not
// reset or pop the input buffer.
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets a callback to immediately flush ACK messages
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// SetErrorCallback sets a callback for command handler failures
func (t *Transport) SetErrorCallback(callback func(cmdID uint16, err error)) {
	t.errorCallback = callback
}
