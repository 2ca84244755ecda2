//go:build rp2040

package main

import (
	"machine"
	"sync/atomic"
	"time"

	"flightpwm/core"
	"flightpwm/protocol"
)

// Engine sizing: every slice channel can be a motor or a servo
const (
	maxMotors = 8
	maxServos = 8
)

// failsafeTimeout disarms the motors when the host goes quiet
const failsafeTimeout = time.Second

// debugOutput routes debug text to UART0. GPIO0/1 are then unavailable as
// PWM outputs.
const debugOutput = false

var (
	// Buffers for communication
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	outputs  *core.Outputs
	commands *core.CommandRegistry

	// Debug counters
	messagesReceived uint32
	msgerrors        uint32

	// Unix nanoseconds of the last byte from the host, atomic
	lastHostActivity int64

	// USB connection state tracking
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	// Initialize USB CDC immediately
	InitUSB()
	if debugOutput {
		InitDebugUART()
	}

	timers := NewRP2040Timers()
	outputs = core.NewOutputs(core.Config{MaxMotors: maxMotors, MaxServos: maxServos}, timers, timers)

	// Nothing drives motors until the host has configured and enabled them
	outputs.DisableMotors()

	commands = core.NewCommandRegistry()
	if err := core.InitOutputCommands(commands, outputs); err != nil {
		core.DebugPrintln("[PWM] command table: " + err.Error())
		return
	}

	// Create buffers
	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, handleCommand)
	transport.SetResetCallback(func() {
		// Host restarted: fail safe until it re-arms. The input buffer is
		// mid-scan here and already holds the new session's frames.
		disarm()
	})
	// Send ACKs to USB as soon as they are encoded
	transport.SetFlushCallback(func() {
		writeUSB()
	})
	transport.SetErrorCallback(func(cmdID uint16, err error) {
		msgerrors++
		core.DebugPrintln("[PWM] command " + itoa(int(cmdID)) + ": " + err.Error())
	})

	atomic.StoreInt64(&lastHostActivity, time.Now().UnixNano())

	go usbReaderLoop()
	go failsafeLoop()

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					disarm()
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
				messagesReceived++
			}

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
			}
		}()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// disarm closes the motor gate and stops every motor pulse
func disarm() {
	outputs.DisableMotors()
	outputs.ShutdownPulses(maxMotors)
}

// failsafeLoop disarms the motors when no host byte arrives within
// failsafeTimeout. The host re-arms with enable_motors.
func failsafeLoop() {
	for {
		time.Sleep(failsafeTimeout / 5)
		last := atomic.LoadInt64(&lastHostActivity)
		if outputs.MotorsEnabled() && time.Now().UnixNano()-last > int64(failsafeTimeout) {
			disarm()
			core.DebugPrintln("[PWM] link lost, motors disarmed")
			core.DumpEventRing()
		}
	}
}

// usbReaderLoop runs in a goroutine to continuously read USB data
func usbReaderLoop() {
	// Recover from panics to prevent a firmware crash
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			// Restart the reader loop
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			// Reconnected after a disconnect: start from a clean state
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				messagesReceived = 0
				consecutiveWriteFailures = 0
			}

			atomic.StoreInt64(&lastHostActivity, time.Now().UnixNano())

			if inputBuffer.Write([]byte{data}) == 0 {
				// Buffer full - error condition
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		// Yield to avoid a busy loop
		time.Sleep(100 * time.Microsecond)
	}
}

// handleCommand dispatches received commands to the command registry
func handleCommand(cmdID uint16, data *[]byte) error {
	return commands.Dispatch(cmdID, data)
}

// itoa converts int to string without importing strconv (for embedded)
func itoa(i int) string {
	if i == 0 {
		return "0"
	}

	negative := i < 0
	if negative {
		i = -i
	}

	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}

	if negative {
		pos--
		buf[pos] = '-'
	}

	return string(buf[pos:])
}

// writeUSB writes available data from output buffer to USB
func writeUSB() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}

	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			// Likely disconnect
			consecutiveWriteFailures++
			// After several failures, mark as disconnected and clear stale data
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
				disarm()
			}
			return
		}
		written += n
	}

	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
