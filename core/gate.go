package core

import "sync/atomic"

// MotorGate is the process-wide motor enable flag. It is a single word read
// by the control loop and written from the failsafe context.
type MotorGate struct {
	enabled uint32 // atomic bool
}

// Enabled reports whether motor writes are allowed
func (g *MotorGate) Enabled() bool {
	return atomic.LoadUint32(&g.enabled) != 0
}

// Enable allows motor writes
func (g *MotorGate) Enable() {
	atomic.StoreUint32(&g.enabled, 1)
}

// Disable suppresses motor writes
func (g *MotorGate) Disable() {
	atomic.StoreUint32(&g.enabled, 0)
}

// MotorsEnabled reports the motor enable gate state
func (o *Outputs) MotorsEnabled() bool {
	return o.gate.Enabled()
}

// DisableMotors suppresses every subsequent WriteMotor until EnableMotors.
// Safe to call from the failsafe context.
func (o *Outputs) DisableMotors() {
	o.gate.Disable()
	o.record(EvtGate, KindMotor, 0, 0, 0)
}

// EnableMotors re-allows motor writes
func (o *Outputs) EnableMotors() {
	o.gate.Enable()
	o.record(EvtGate, KindMotor, 0, 1, 0)
}

// ShutdownPulses zeroes the first count motor compare registers regardless
// of the gate, stopping pulses at the next overflow.
func (o *Outputs) ShutdownPulses(count uint8) {
	n := int(count)
	if n > len(o.motors) {
		n = len(o.motors)
	}
	for i := 0; i < n; i++ {
		// Set the compare register to 0, which stops the output pulsing if the timer overflows
		if p := o.motors[i]; p != nil {
			p.zero()
		}
	}
	o.record(EvtShutdown, KindMotor, count, 0, 0)
}
