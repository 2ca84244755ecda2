package core

import "errors"

// ErrCapacityExceeded is returned when more output ports are requested than
// the registry was sized for.
var ErrCapacityExceeded = errors.New("output port capacity exceeded")

// ErrInvalidRate is returned when an output is configured with a zero rate.
var ErrInvalidRate = errors.New("output rate must be non-zero")

// ErrIndexOutOfRange is returned when an output index is beyond the
// dispatch table capacity.
var ErrIndexOutOfRange = errors.New("output index out of range")

// OutputKind names the dispatch table an output belongs to
type OutputKind uint8

const (
	KindMotor OutputKind = iota
	KindServo
)

func (k OutputKind) String() string {
	if k == KindServo {
		return "servo"
	}
	return "motor"
}

// ConfigurationError reports an output that could not be bound to its
// timer channel. Motor output must not be armed while one is outstanding.
type ConfigurationError struct {
	Kind    OutputKind
	Index   uint8
	Timer   TimerID
	Channel Channel
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := e.Kind.String() + " " + itoa(int(e.Index)) +
		": timer " + itoa(int(e.Timer)) + " channel " + itoa(int(e.Channel))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
