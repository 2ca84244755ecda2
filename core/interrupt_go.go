//go:build !tinygo

package core

// State is a placeholder for interrupt state on regular Go
type State uintptr

// disableInterrupts is a no-op on hosts; the simulator has no ISRs
func disableInterrupts() State {
	return 0
}

func restoreInterrupts(state State) {}
