package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dstore/internal/record"
)

func TestEmergency_ScenarioB(t *testing.T) {
	s, clk := openTestStore[record.Document](t, "items")
	require.NoError(t, s.Create(record.Document{"id": 1, "name": "a"}))
	require.NoError(t, s.Create(record.Document{"id": 2, "name": "b"}))
	clk.Advance(DefaultQuietWindow)
	syncStore(t, s)

	require.NoError(t, s.Delete(1))
	require.NoError(t, s.EmergencyFlush("interrupt"))

	assert.Equal(t, `[{"id":2,"name":"b"}]`, readFile(t, s), "written without waiting for the window")
	assert.Equal(t, StateEmergencyDone, s.State())
	assert.Equal(t, 0, clk.Pending(), "pending timer cancelled")
	assert.True(t, s.Stats().EmergencyFlushed)
}

func TestEmergency_LatchIsIdempotent(t *testing.T) {
	w := &recordingWriter{}
	s, _ := openTestStore[item](t, "items", WithFileWriter(w.write))
	w.reset()
	require.NoError(t, s.Create(item{ID: 1}))

	require.NoError(t, s.EmergencyFlush("SIGINT"))
	require.NoError(t, s.EmergencyFlush("SIGTERM"))
	require.NoError(t, s.Close())

	assert.Len(t, w.all(), 1)
}

func TestEmergency_CleanStoreSkipsWrite(t *testing.T) {
	w := &recordingWriter{}
	s, _ := openTestStore[item](t, "items", WithFileWriter(w.write))
	w.reset()

	require.NoError(t, s.EmergencyFlush("exit"))

	assert.Empty(t, w.all())
	assert.Equal(t, StateClean, s.State(), "latch is only set by an actual emergency write")
	require.NoError(t, s.Create(item{ID: 1}), "store still accepts mutations")
}

func TestEmergency_MutationsRejectedAfterLatch(t *testing.T) {
	s, clk := openTestStore[item](t, "items")
	require.NoError(t, s.Create(item{ID: 1}))
	require.NoError(t, s.EmergencyFlush("SIGHUP"))

	assert.True(t, IsClosed(s.Create(item{ID: 2})))
	assert.True(t, IsClosed(s.Update(1, record.Patch{"name": "x"})))
	assert.True(t, IsClosed(s.Delete(1)))
	_, err := s.UpdateWhere(func(item) bool { return true }, record.Patch{"name": "x"})
	assert.True(t, IsClosed(err))
	_, err = s.DeleteWhere(func(item) bool { return true })
	assert.True(t, IsClosed(err))

	assert.Equal(t, 0, clk.Pending(), "latched store arms no timers")
	assert.Equal(t, []item{{ID: 1}}, s.ReadAll(), "reads still work")
}

func TestEmergency_WaitsForInFlightWrite(t *testing.T) {
	w := &recordingWriter{}
	s, clk := openTestStore[item](t, "items", WithFileWriter(w.write))
	w.reset()

	require.NoError(t, s.Create(item{ID: 1}))
	started, release := w.hold()
	clk.Advance(DefaultQuietWindow)
	waitClosed(t, started)

	require.NoError(t, s.Create(item{ID: 2}))

	done := make(chan error, 1)
	go func() { done <- s.EmergencyFlush("SIGTERM") }()

	select {
	case <-done:
		t.Fatal("emergency flush overlapped an in-flight write")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("emergency flush did not finish")
	}

	assert.Equal(t, []string{`[{"id":1}]`, `[{"id":1},{"id":2}]`}, w.all())
	assert.Equal(t, `[{"id":1},{"id":2}]`, readFile(t, s))
	assert.Equal(t, int32(1), w.maxActive.Load())
}

func TestEmergency_WriteFailurePropagates(t *testing.T) {
	w := &recordingWriter{}
	s, _ := openTestStore[item](t, "items", WithFileWriter(w.write))
	require.NoError(t, s.Create(item{ID: 1}))
	w.failNext(1)

	err := s.EmergencyFlush("SIGINT")

	assert.Equal(t, CodePersistFailed, ErrorCode(err))
	assert.Equal(t, StateEmergencyDone, s.State())
	assert.Equal(t, 1, s.Stats().FailedFlushes)
}

func TestClose_FlushesDirtyStore(t *testing.T) {
	s, clk := openTestStore[item](t, "items")
	require.NoError(t, s.Create(item{ID: 3}))

	require.NoError(t, s.Close())

	assert.Equal(t, `[{"id":3}]`, readFile(t, s))
	assert.Equal(t, StateEmergencyDone, s.State())
	assert.Equal(t, 0, clk.Pending())
	assert.NoError(t, s.Close(), "Close is idempotent")
}
