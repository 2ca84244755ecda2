package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutputs(motors, servos int, timers ...TimerID) (*Outputs, *mockTimers) {
	mt := newMockTimers(timers...)
	return NewOutputs(Config{MaxMotors: motors, MaxServos: servos}, mt, &mockPins{}), mt
}

func TestNewOutputsDefaults(t *testing.T) {
	o, _ := newTestOutputs(4, 2, 1)

	assert.Equal(t, DefaultClocks(), o.Clocks())
	assert.Equal(t, 6, o.Registry().Capacity())
	assert.Equal(t, 4, o.MotorCapacity())
	assert.Equal(t, 2, o.ServoCapacity())
	assert.True(t, o.MotorsEnabled())
	assert.Nil(t, o.Motor(0))
	assert.Nil(t, o.Servo(7))
}

func TestNewOutputsCustomClocks(t *testing.T) {
	o := NewOutputs(Config{MaxMotors: 1, Clocks: Clocks{Brushed: 24}}, newMockTimers(1), nil)
	assert.Equal(t, Clocks{PWM: 1, Brushed: 24, Oneshot: 8}, o.Clocks())
}

func TestIsMotorBrushed(t *testing.T) {
	assert.False(t, IsMotorBrushed(50))
	assert.False(t, IsMotorBrushed(400))
	assert.False(t, IsMotorBrushed(500))
	assert.True(t, IsMotorBrushed(501))
	assert.True(t, IsMotorBrushed(32000))
}

func TestBrushlessMotorStandardWrite(t *testing.T) {
	o, mt := newTestOutputs(4, 0, 3)

	require.NoError(t, o.ConfigureBrushlessMotor(0, desc(3, 0), 400, 1000))

	p := o.Motor(0)
	require.NotNil(t, p)
	assert.Equal(t, uint32(2500), p.Period())
	assert.Equal(t, uint32(1), mt.clocks[3])
	assert.Equal(t, StrategyStandard, p.Strategy())
	assert.Equal(t, uint32(1000), mt.reg(3, 0))

	o.WriteMotor(0, 1500)
	assert.Equal(t, uint32(1500), mt.reg(3, 0))
}

func TestBrushedMotorTransformsWrite(t *testing.T) {
	o, mt := newTestOutputs(4, 0, 3)

	require.NoError(t, o.ConfigureBrushedMotor(1, desc(3, 2), 16000, 1000))

	p := o.Motor(1)
	require.NotNil(t, p)
	assert.Equal(t, uint32(500), p.Period()) // 8 MHz / 16 kHz
	assert.Equal(t, uint32(8), mt.clocks[3])
	assert.Equal(t, StrategyBrushed, p.Strategy())

	o.WriteMotor(1, 1500)
	assert.Equal(t, uint32(250), mt.reg(3, 2))

	o.WriteMotor(1, 800)
	assert.Equal(t, uint32(0), mt.reg(3, 2))

	o.WriteMotor(1, 2200)
	assert.Equal(t, uint32(500), mt.reg(3, 2))
}

func TestOneshotMotorConfig(t *testing.T) {
	o, mt := newTestOutputs(2, 0, 5)

	require.NoError(t, o.ConfigureOneshotMotor(0, desc(5, 1)))

	p := o.Motor(0)
	require.NotNil(t, p)
	assert.Equal(t, uint32(OneshotPeriod), p.Period())
	assert.Equal(t, uint32(8), mt.clocks[5])
	assert.Equal(t, uint32(0), p.Compare())

	o.WriteMotor(0, 250)
	assert.Equal(t, uint32(250), mt.reg(5, 1))
}

func TestServoConfigAndWrite(t *testing.T) {
	o, mt := newTestOutputs(0, 2, 4)

	require.NoError(t, o.ConfigureServo(1, desc(4, 3), 50, 1500))

	p := o.Servo(1)
	require.NotNil(t, p)
	assert.Equal(t, uint32(20000), p.Period())
	assert.Equal(t, uint32(1), mt.clocks[4])
	assert.Equal(t, uint32(1500), mt.reg(4, 3))

	o.WriteServo(1, 1800)
	assert.Equal(t, uint32(1800), mt.reg(4, 3))
}

// Four brushless motors on one timer at 400 Hz with a 1 MHz clock
func TestQuadMotorEndToEnd(t *testing.T) {
	o, mt := newTestOutputs(4, 0, 1)

	for i := uint8(0); i < 4; i++ {
		require.NoError(t, o.ConfigureBrushlessMotor(i, desc(1, Channel(i)), 400, 1000))
	}
	assert.Equal(t, 4, o.Registry().Allocated())

	values := []uint16{1100, 1200, 1300, 1400}
	for i, v := range values {
		o.WriteMotor(uint8(i), v)
	}
	for i, v := range values {
		assert.Equal(t, uint32(v), mt.reg(1, Channel(i)))
	}

	o.ShutdownPulses(4)
	for i := range values {
		assert.Equal(t, uint32(0), mt.reg(1, Channel(i)))
	}
}

func TestWriteOutOfRangeAndUnboundIgnored(t *testing.T) {
	o, mt := newTestOutputs(2, 1, 1)
	require.NoError(t, o.ConfigureBrushlessMotor(0, desc(1, 0), 400, 1000))

	assert.NotPanics(t, func() {
		o.WriteMotor(1, 1500) // unbound
		o.WriteMotor(2, 1500) // out of range
		o.WriteMotor(255, 1500)
		o.WriteServo(0, 1500) // unbound
		o.WriteServo(9, 1500)
	})
	assert.Equal(t, uint32(1000), mt.reg(1, 0))
}

func TestConfigureRejectsZeroRate(t *testing.T) {
	o, _ := newTestOutputs(2, 2, 1)

	err := o.ConfigureBrushlessMotor(0, desc(1, 0), 0, 1000)
	assert.ErrorIs(t, err, ErrInvalidRate)
	err = o.ConfigureBrushedMotor(0, desc(1, 0), 0, 1000)
	assert.ErrorIs(t, err, ErrInvalidRate)
	err = o.ConfigureServo(0, desc(1, 1), 0, 1500)
	assert.ErrorIs(t, err, ErrInvalidRate)

	assert.Equal(t, 0, o.Registry().Allocated())
}

func TestConfigureRejectsIndexOutOfRange(t *testing.T) {
	o, _ := newTestOutputs(2, 1, 1)

	err := o.ConfigureBrushlessMotor(2, desc(1, 0), 400, 1000)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, KindMotor, cfgErr.Kind)
	assert.Equal(t, uint8(2), cfgErr.Index)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	err = o.ConfigureServo(1, desc(1, 1), 50, 1500)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, KindServo, cfgErr.Kind)

	assert.Equal(t, 0, o.Registry().Allocated())
}

func TestConfigureUnknownTimerIsConfigurationError(t *testing.T) {
	o, _ := newTestOutputs(2, 0, 1)

	err := o.ConfigureBrushlessMotor(0, desc(7, 2), 400, 1000)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, TimerID(7), cfgErr.Timer)
	assert.Equal(t, Channel(2), cfgErr.Channel)
	assert.ErrorIs(t, err, errNoTimer)
	assert.Equal(t, "motor 0: timer 7 channel 2: no such timer", err.Error())

	assert.Nil(t, o.Motor(0))
	assert.Equal(t, 0, o.Registry().Allocated())
}

// Pool capacity is shared between motors and servos
func TestConfigureCapacityExceeded(t *testing.T) {
	mt := newMockTimers(1, 2)
	o := NewOutputs(Config{MaxMotors: 4, MaxServos: 1}, mt, nil)

	for i := uint8(0); i < 4; i++ {
		require.NoError(t, o.ConfigureBrushlessMotor(i, desc(1, Channel(i)), 400, 1000))
	}
	require.NoError(t, o.ConfigureServo(0, desc(2, 0), 50, 1500))

	// Rebinding a motor index still needs a fresh slot
	err := o.ConfigureBrushlessMotor(0, desc(2, 1), 400, 1000)
	assert.Same(t, ErrCapacityExceeded, err)

	var cfgErr *ConfigurationError
	assert.False(t, errors.As(err, &cfgErr))
	assert.Equal(t, TimerID(1), o.Motor(0).Timer())
}
