package core

// maxTimers bounds the TimerID space for the overflow visited set
const maxTimers = 256

// CompleteOneshotCycle rearms oneshot motors after the loop has written all
// motor values. Every distinct timer driving motors 0..count-1 is forced to
// overflow exactly once, then all of those motor compare registers are
// zeroed so a second overflow before the next loop emits no pulse.
// All overflows are issued before any register is cleared.
func (o *Outputs) CompleteOneshotCycle(count uint8) {
	n := int(count)
	if n > len(o.motors) {
		n = len(o.motors)
	}

	var visited [maxTimers / 32]uint32
	state := disableInterrupts()
	for i := 0; i < n; i++ {
		p := o.motors[i]
		if p == nil {
			continue
		}
		word, bit := p.timer/32, uint32(1)<<(p.timer%32)
		if visited[word]&bit != 0 {
			continue
		}
		visited[word] |= bit

		o.registry.timers.ForceOverflow(p.timer)
		o.record(EvtOverflow, KindMotor, uint8(i), uint32(p.timer), 0)
	}
	restoreInterrupts(state)

	for i := 0; i < n; i++ {
		// Cleared here, set to the output value again on the next main loop
		if p := o.motors[i]; p != nil {
			p.zero()
		}
	}
}
