package core

// WriteStrategy selects how a commanded value becomes a compare register value
type WriteStrategy uint8

const (
	// StrategyStandard stores the value unchanged; it is already in timer ticks
	StrategyStandard WriteStrategy = iota

	// StrategyBrushed maps a 1000-2000 command onto 0-period
	StrategyBrushed
)

// Brushed command range
const (
	BrushedMinCommand = 1000
	BrushedSpan       = 1000
)

func (s WriteStrategy) String() string {
	switch s {
	case StrategyStandard:
		return "standard"
	case StrategyBrushed:
		return "brushed"
	default:
		return "unknown"
	}
}

// Transform converts a commanded value into a compare register value for a
// port with the given period.
func (s WriteStrategy) Transform(value uint16, period uint32) uint32 {
	if s != StrategyBrushed {
		return uint32(value)
	}
	if value < BrushedMinCommand {
		return 0
	}
	// (value - 1000) * period / 1000, truncating
	pulse := uint64(value-BrushedMinCommand) * uint64(period) / BrushedSpan
	if pulse > uint64(period) {
		return period
	}
	return uint32(pulse)
}
