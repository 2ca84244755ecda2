package sim

import (
	"testing"

	"flightpwm/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad(t *testing.T) (*core.Outputs, *Timers) {
	t.Helper()
	timers := NewTimers(4, 4)
	o := core.NewOutputs(core.Config{MaxMotors: 4, MaxServos: 2}, timers, timers)
	for i := uint8(0); i < 4; i++ {
		desc := core.ChannelDescriptor{Timer: 1, Channel: core.Channel(i), Pin: core.GPIOPin(10 + i), AltFunction: 2, Flags: core.OutputEnabled}
		require.NoError(t, o.ConfigureBrushlessMotor(i, desc, 400, 1000))
	}
	return o, timers
}

func TestTimersRecordConfiguration(t *testing.T) {
	_, timers := quad(t)

	snap := timers.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, core.TimerID(1), snap[0].Timer)
	assert.Equal(t, uint32(2500), snap[0].Period)
	assert.Equal(t, uint32(1), snap[0].ClockMHz)
	assert.True(t, snap[0].Running)
	require.Len(t, snap[0].Channels, 4)
	for _, ch := range snap[0].Channels {
		assert.Equal(t, uint32(1000), ch.Compare)
		assert.True(t, ch.Enabled)
	}

	pins := timers.Pins()
	require.Len(t, pins, 4)
	assert.Equal(t, PinConfig{Pin: 10, AltFunction: 2, Pull: core.PullDown, Speed: core.SpeedLow}, pins[0])
}

func TestTimersUnknownChannel(t *testing.T) {
	timers := NewTimers(2, 2)

	_, err := timers.CompareRegister(2, 0)
	assert.ErrorIs(t, err, ErrNoSuchChannel)
	_, err = timers.CompareRegister(1, 2)
	assert.ErrorIs(t, err, ErrNoSuchChannel)
	assert.ErrorIs(t, timers.ConfigureTimeBase(5, 100, 1), ErrNoSuchChannel)
	assert.NotPanics(t, func() { timers.ForceOverflow(9) })
}

func TestAdvanceCountsOverflowsAndPulses(t *testing.T) {
	o, timers := quad(t)
	o.WriteMotor(0, 1500)

	// Period 2500 ticks means 2501 counts per cycle
	timers.Advance(2501 * 3)

	snap := timers.Snapshot()[0]
	assert.Equal(t, uint64(3), snap.Overflows)
	assert.Equal(t, uint32(0), snap.Counter)
	assert.Equal(t, uint64(3), snap.Channels[0].Pulses)
	assert.Equal(t, uint32(1500), snap.Channels[0].LastPulse)

	timers.Advance(100)
	assert.Equal(t, uint32(100), timers.Snapshot()[0].Counter)
}

func TestShutdownStopsPulses(t *testing.T) {
	o, timers := quad(t)
	o.ShutdownPulses(4)

	timers.Advance(2501 * 2)
	for _, ch := range timers.Snapshot()[0].Channels {
		assert.Equal(t, uint64(0), ch.Pulses)
	}
}

// After a oneshot cycle completes, a natural overflow emits nothing until
// the next loop writes new values.
func TestOneshotCycleSingleShot(t *testing.T) {
	timers := NewTimers(3, 4)
	o := core.NewOutputs(core.Config{MaxMotors: 2}, timers, nil)
	require.NoError(t, o.ConfigureOneshotMotor(0, core.ChannelDescriptor{Timer: 2, Channel: 0, Flags: core.OutputEnabled}))
	require.NoError(t, o.ConfigureOneshotMotor(1, core.ChannelDescriptor{Timer: 2, Channel: 1, Flags: core.OutputEnabled}))

	o.WriteMotor(0, 1000)
	o.WriteMotor(1, 1200)
	o.CompleteOneshotCycle(2)

	timers.Advance(core.OneshotPeriod + 1)

	snap := timers.Snapshot()[0]
	assert.Equal(t, uint64(2), snap.Overflows)
	for _, ch := range snap.Channels {
		assert.Equal(t, uint64(1), ch.Pulses)
		assert.Equal(t, uint32(0), ch.Compare)
	}
}

func TestDisabledChannelEmitsNothing(t *testing.T) {
	timers := NewTimers(1, 1)
	o := core.NewOutputs(core.Config{MaxServos: 1}, timers, nil)
	require.NoError(t, o.ConfigureServo(0, core.ChannelDescriptor{Timer: 0, Channel: 0}, 50, 1500))

	timers.Advance(20001 * 2)
	ch := timers.Snapshot()[0].Channels[0]
	assert.False(t, ch.Enabled)
	assert.Equal(t, uint64(0), ch.Pulses)
}
