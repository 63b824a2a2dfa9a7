package recording_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/clock"
	"github.com/doodlejam/doodlejam/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecorder() (*recording.Recorder, *clock.Manual) {
	c := clock.NewManual(time.Unix(1000, 0))
	return recording.NewRecorder(c, recording.WithFlushDelay(0)), c
}

func TestRecordingRoundTrip(t *testing.T) {
	r, c := newRecorder()
	r.StartRecording()
	for i := 0; i < 5; i++ {
		_, ok := r.Append("c4")
		require.True(t, ok)
		c.Advance(200 * time.Millisecond)
	}
	res, err := r.StopRecording(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.EventLog, 5)
	for i := 1; i < len(res.EventLog); i++ {
		assert.Greater(t, res.EventLog[i].Timestamp, res.EventLog[i-1].Timestamp)
	}
	assert.Equal(t, 0.0, res.EventLog[0].Timestamp)
	assert.Equal(t, 800.0, res.EventLog[4].Timestamp)
	assert.GreaterOrEqual(t, res.Duration, 0.8)
	assert.False(t, r.Recording())
}

func TestStopWithoutRecordingReturnsNil(t *testing.T) {
	r, _ := newRecorder()
	res, err := r.StopRecording(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestAppendOutsideRecordingIsIgnored(t *testing.T) {
	r, _ := newRecorder()
	_, ok := r.Append("kick")
	assert.False(t, ok)
	assert.Empty(t, r.EventLog())
}

func TestStartRecordingTwiceKeepsTheLog(t *testing.T) {
	r, c := newRecorder()
	r.StartRecording()
	c.Advance(100 * time.Millisecond)
	r.Append("snare")
	c.Advance(100 * time.Millisecond)
	r.StartRecording()
	e, ok := r.Append("kick")
	require.True(t, ok)
	assert.Equal(t, 200.0, e.Timestamp)
	assert.Len(t, r.EventLog(), 2)
}

func TestRecordingAudioIsWav(t *testing.T) {
	r, c := newRecorder()
	r.StartRecording()
	buf := make(doodlejam.AudioBuffer, doodlejam.SampleRate)
	for i := range buf {
		buf[i] = [2]float32{0.5, -0.5}
	}
	r.WriteAudio(buf)
	c.Advance(time.Second)
	res, err := r.StopRecording(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Audio), 44)
	assert.Equal(t, "RIFF", string(res.Audio[0:4]))
	assert.Equal(t, "WAVE", string(res.Audio[8:12]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(res.Audio[22:24]))
	assert.Equal(t, uint32(doodlejam.SampleRate), binary.LittleEndian.Uint32(res.Audio[24:28]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(res.Audio[34:36]))
	assert.Equal(t, 44+doodlejam.SampleRate*4, len(res.Audio))
	assert.InDelta(t, -6.02, res.Loudness.Peak, 0.01)
}

func TestAudioOutsideRecordingIsDropped(t *testing.T) {
	r, _ := newRecorder()
	r.WriteAudio(make(doodlejam.AudioBuffer, 100))
	r.StartRecording()
	res, err := r.StopRecording(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 44, len(res.Audio))
}

func TestFlushDelayWaitsForTailAudio(t *testing.T) {
	r := recording.NewRecorder(clock.Real(), recording.WithFlushDelay(50*time.Millisecond))
	r.StartRecording()
	var wg sync.WaitGroup
	wg.Add(1)
	var res *doodlejam.RecordingResult
	go func() {
		defer wg.Done()
		res, _ = r.StopRecording(context.Background())
	}()
	// wait until the stop request has been registered
	require.Eventually(t, func() bool { return !r.Recording() }, time.Second, time.Millisecond)
	_, ok := r.Append("late")
	assert.False(t, ok)
	r.WriteAudio(make(doodlejam.AudioBuffer, 10))
	wg.Wait()
	require.NotNil(t, res)
	assert.Equal(t, 44+10*4, len(res.Audio))
	assert.Empty(t, res.EventLog)
}

func TestStopRecordingHonoursContext(t *testing.T) {
	r := recording.NewRecorder(clock.Real(), recording.WithFlushDelay(time.Hour))
	r.StartRecording()
	r.Append("kick")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := r.StopRecording(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Len(t, res.EventLog, 1)
}

func TestEventLogFileRoundTrip(t *testing.T) {
	log := doodlejam.EventLog{{Timestamp: 0, Sound: "kick"}, {Timestamp: 125.5, Sound: "harp:c4"}}
	var buf bytes.Buffer
	require.NoError(t, recording.WriteEventLog(&buf, log))
	got, err := recording.ReadEventLog(&buf)
	require.NoError(t, err)
	assert.Equal(t, log, got)
}

func TestReadEventLogAcceptsJSONAndSorts(t *testing.T) {
	got, err := recording.ReadEventLog(bytes.NewBufferString(`[{"timestamp": 300, "sound": "snare"}, {"timestamp": 100, "sound": "kick"}]`))
	require.NoError(t, err)
	assert.Equal(t, doodlejam.EventLog{{Timestamp: 100, Sound: "kick"}, {Timestamp: 300, Sound: "snare"}}, got)
	_, err = recording.ReadEventLog(bytes.NewBufferString(`{"events": [{"timestamp": -1, "sound": "kick"}]}`))
	assert.Error(t, err)
}
