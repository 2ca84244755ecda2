package protocol

import (
	"testing"
)

func TestVLQEncodeDecodeInt(t *testing.T) {
	testCases := []int32{0, 1, -1, 95, 96, -32, -33, 1000, -1000, 65535, -65535, 1000000}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, encoded)
		}
		if len(data) != 0 {
			t.Errorf("VLQ decode left %d bytes for value %d", len(data), expected)
		}
	}
}

// Pulse commands carry index (%c) followed by value (%hu)
func TestVLQPulseArguments(t *testing.T) {
	output := NewScratchOutput()
	EncodeVLQUint(output, 3)
	EncodeVLQUint(output, 2000)
	EncodeVLQUint(output, OneshotMax)
	data := output.Result()

	want := []uint32{3, 2000, OneshotMax}
	for i, w := range want {
		got, err := DecodeVLQUint(&data)
		if err != nil {
			t.Fatalf("arg %d: %v", i, err)
		}
		if got != w {
			t.Errorf("arg %d: expected %d, got %d", i, w, got)
		}
	}
	if len(data) != 0 {
		t.Errorf("expected all bytes consumed, %d left", len(data))
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	// Continuation byte but no following byte
	data := []byte{0x80}
	_, err := DecodeVLQInt(&data)
	if err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}

	var empty []byte
	if _, err := DecodeVLQUint(&empty); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall on empty input, got %v", err)
	}
}
