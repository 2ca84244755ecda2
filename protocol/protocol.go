// Package protocol implements the framed serial link between the host and
// the output board: VLQ argument encoding, CRC16 framing with sequence
// numbers and ACKs, and the shared output command table.
package protocol

// Version represents the link protocol version
const Version = "0.1.0"

// MessageMax is the scratch output buffer size
const MessageMax = 512

// Message sequence masks
const (
	MessageSeqMask  = 0x0F
	MessageSeqShift = 4
)
