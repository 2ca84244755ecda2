package protocol

// CRC16 computes the CCITT CRC16 (init 0xFFFF, reflected update) that
// covers a frame's header and payload.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc & 0xFF)
		b ^= b << 4
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}

// validFrameCRC checks the big-endian CRC stored in the trailer of a
// complete frame of msgLen bytes
func validFrameCRC(frame []byte, msgLen int) bool {
	stored := uint16(frame[msgLen-MessageTrailerCRC])<<8 |
		uint16(frame[msgLen-MessageTrailerCRC+1])
	return stored == CRC16(frame[:msgLen-MessageTrailerSize])
}
