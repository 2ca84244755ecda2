package core

import "sync/atomic"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// OutputEvent captures an output engine event for post-mortem analysis
type OutputEvent struct {
	EventType uint8      // Event type code
	Kind      OutputKind // Motor or servo table
	Index     uint8      // Output index (or count for shutdown)
	Value1    uint32     // Context-dependent value
	Value2    uint32     // Context-dependent value
}

// Event type codes
const (
	EvtConfigure   = 1 // Output bound: v1=timer v2=period
	EvtConfigFault = 2 // Output failed to bind: v1=timer v2=channel
	EvtGate        = 3 // Motor gate changed: v1=enabled
	EvtShutdown    = 4 // Motor pulses shut down: index=count
	EvtOverflow    = 5 // Oneshot timer forced to overflow: v1=timer
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Event ring buffer (non-blocking, for post-mortem)
	eventRing     [EventRingSize]OutputEvent
	eventRingHead uint32 // atomic, next write position
	eventsEnabled uint32 = 1
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// SetEventsEnabled turns event capture on or off
func SetEventsEnabled(enabled bool) {
	if enabled {
		atomic.StoreUint32(&eventsEnabled, 1)
	} else {
		atomic.StoreUint32(&eventsEnabled, 0)
	}
}

// RecordEvent captures an event in the ring buffer.
// Only the head index is atomic. Entries are written without locking, so a
// reader racing the failsafe context may see a torn entry; the ring is a
// best-effort debug trace.
// Non-blocking; callable from the control loop and the failsafe context.
func RecordEvent(eventType uint8, kind OutputKind, index uint8, value1, value2 uint32) {
	if atomic.LoadUint32(&eventsEnabled) == 0 {
		return
	}
	idx := (atomic.AddUint32(&eventRingHead, 1) - 1) % EventRingSize
	eventRing[idx] = OutputEvent{
		EventType: eventType,
		Kind:      kind,
		Index:     index,
		Value1:    value1,
		Value2:    value2,
	}
}

func (o *Outputs) record(eventType uint8, kind OutputKind, index uint8, value1, value2 uint32) {
	RecordEvent(eventType, kind, index, value1, value2)
}

// Events returns the captured events, oldest first
func Events() []OutputEvent {
	head := atomic.LoadUint32(&eventRingHead)
	events := make([]OutputEvent, 0, EventRingSize)
	for i := uint32(0); i < EventRingSize; i++ {
		evt := eventRing[(head+i)%EventRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

// DumpEventRing outputs the event ring buffer (call on shutdown/error)
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[PWM] === Event Ring Dump ===")
	for _, evt := range Events() {
		var name string
		switch evt.EventType {
		case EvtConfigure:
			name = "CONFIGURE"
		case EvtConfigFault:
			name = "CONFIG_FAULT!"
		case EvtGate:
			name = "GATE"
		case EvtShutdown:
			name = "SHUTDOWN"
		case EvtOverflow:
			name = "OVERFLOW"
		default:
			name = "UNKNOWN"
		}

		debugPrintln("[PWM] " + name +
			" " + evt.Kind.String() + "=" + itoa(int(evt.Index)) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[PWM] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	for i := range eventRing {
		eventRing[i] = OutputEvent{}
	}
	atomic.StoreUint32(&eventRingHead, 0)
}
