package protocol

import "sync/atomic"

const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
)

// Message is one validated frame
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // Frame data without header/trailer, aliases the input
	CRC      uint16
}

// IsAck reports whether the frame carries no commands
func (m Message) IsAck() bool {
	return len(m.Payload) == 0
}

// nextSeq advances a sequence byte within the 0x10-0x1F window
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}

// EncodeFrame writes a complete frame (length, seq, body, CRC, sync) to output
func EncodeFrame(output OutputBuffer, seq uint8, body func(output OutputBuffer)) {
	cursor := output.CurPosition()
	output.Output([]byte{0, seq})

	if body != nil {
		body(output)
	}

	changed := len(output.DataSince(cursor))
	output.Update(cursor, uint8(changed+MessageTrailerSize))

	crc := CRC16(output.DataSince(cursor))
	output.Output([]byte{
		uint8(crc >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})
}

// scanFrames walks data frame by frame, calling handle for every frame that
// passes the length, sync and CRC checks. synced holds the atomic
// synchronization flag; after a bad frame the scanner drops bytes up to the
// next sync byte and calls onResync. Returns the number of bytes consumed.
func scanFrames(data []byte, synced *uint32, onResync func(), handle func(Message)) int {
	total := len(data)

	for len(data) > 0 {
		if atomic.LoadUint32(synced) == 0 {
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			atomic.StoreUint32(synced, 1)
			if onResync != nil {
				onResync()
			}
			continue
		}

		// Skip leading sync bytes
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			atomic.StoreUint32(synced, 0)
			continue
		}

		// Wait for full message
		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			atomic.StoreUint32(synced, 0)
			continue
		}

		if !validFrameCRC(data, msgLen) {
			atomic.StoreUint32(synced, 0)
			continue
		}

		crc := uint16(data[msgLen-MessageTrailerCRC])<<8 | uint16(data[msgLen-MessageTrailerCRC+1])
		msg := Message{
			Length:   data[MessagePositionLen],
			Sequence: data[MessagePositionSeq],
			Payload:  data[MessageHeaderSize : msgLen-MessageTrailerSize],
			CRC:      crc,
		}
		data = data[msgLen:]
		handle(msg)
	}

	return total - len(data)
}
