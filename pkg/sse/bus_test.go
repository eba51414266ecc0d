package sse

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainToBuffer runs the writer loop and returns the emitted event
// types once the stream is sealed.
func drainToBuffer(t *testing.T, b *Bus, run func()) []string {
	t.Helper()

	var buf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, b.Drain(&buf))
	}()

	run()
	wg.Wait()

	return eventTypes(buf.String())
}

func eventTypes(wire string) []string {
	var types []string
	for _, line := range strings.Split(wire, "\n") {
		if strings.HasPrefix(line, "event: ") {
			types = append(types, strings.TrimPrefix(line, "event: "))
		}
	}
	return types
}

func TestBus_InfoFlowOrdering(t *testing.T) {
	b := NewBus(0)

	types := drainToBuffer(t, b, func() {
		require.NoError(t, b.SendChunk("Il y a "))
		require.NoError(t, b.SendChunk("42 rapports."))
		require.NoError(t, b.SendLlmComplete())
		require.NoError(t, b.SendFinalComplete())
	})

	assert.Equal(t, []string{"chunk", "chunk", "llm_complete", "end"}, types)
}

func TestBus_DownloadFlowOrdering(t *testing.T) {
	b := NewBus(0)

	types := drainToBuffer(t, b, func() {
		require.NoError(t, b.SendChunk("Préparation."))
		require.NoError(t, b.SendLlmComplete())
		require.NoError(t, b.SendDownloadStep("Préparation des fichiers..."))
		require.NoError(t, b.SendDownloadStep("Création de l'archive ZIP..."))
		require.NoError(t, b.SendDownloadReady(DownloadInfo{Available: true, Status: "ready"}))
		require.NoError(t, b.SendFinalComplete())
	})

	assert.Equal(t, []string{"chunk", "llm_complete", "download_step", "download_step", "download_ready", "end"}, types)
}

func TestBus_DownloadErrorStillEnds(t *testing.T) {
	b := NewBus(0)

	types := drainToBuffer(t, b, func() {
		require.NoError(t, b.SendLlmComplete())
		require.NoError(t, b.SendDownloadStep("step"))
		require.NoError(t, b.SendDownloadError(DownloadInfo{Available: false, Status: "error", Message: "aucun fichier"}))
		require.NoError(t, b.SendFinalComplete())
	})

	assert.Equal(t, []string{"llm_complete", "download_step", "download_error", "end"}, types)
}

func TestBus_GrammarViolations(t *testing.T) {
	t.Run("chunk after llm_complete", func(t *testing.T) {
		b := NewBus(0)
		go b.Drain(&bytes.Buffer{})

		require.NoError(t, b.SendLlmComplete())
		assert.Error(t, b.SendChunk("late"))
	})

	t.Run("download_step before llm_complete", func(t *testing.T) {
		b := NewBus(0)
		go b.Drain(&bytes.Buffer{})

		assert.Error(t, b.SendDownloadStep("early"))
	})

	t.Run("end before llm_complete", func(t *testing.T) {
		b := NewBus(0)
		go b.Drain(&bytes.Buffer{})

		assert.Error(t, b.SendFinalComplete())
	})

	t.Run("download_step after download_ready", func(t *testing.T) {
		b := NewBus(0)
		go b.Drain(&bytes.Buffer{})

		require.NoError(t, b.SendLlmComplete())
		require.NoError(t, b.SendDownloadReady(DownloadInfo{}))
		assert.Error(t, b.SendDownloadStep("late"))
	})
}

func TestBus_NothingAfterEnd(t *testing.T) {
	b := NewBus(0)
	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Drain(&buf)
	}()

	require.NoError(t, b.SendLlmComplete())
	require.NoError(t, b.SendFinalComplete())
	<-done

	assert.ErrorIs(t, b.SendChunk("x"), ErrStreamEnded)
	assert.ErrorIs(t, b.SendFinalComplete(), ErrStreamEnded)
	assert.ErrorIs(t, b.SendError("boom"), ErrStreamEnded)

	assert.Equal(t, 1, strings.Count(buf.String(), "event: end\n"))
}

func TestBus_ErrorPathEmitsErrorThenEnd(t *testing.T) {
	b := NewBus(0)

	types := drainToBuffer(t, b, func() {
		require.NoError(t, b.SendChunk("partial"))
		require.NoError(t, b.SendError("génération impossible"))
	})

	assert.Equal(t, []string{"chunk", "error", "end"}, types)
}

func TestBus_WireFormat(t *testing.T) {
	b := NewBus(0)
	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Drain(&buf)
	}()

	require.NoError(t, b.SendChunk("Bonjour"))
	require.NoError(t, b.SendLlmComplete())
	require.NoError(t, b.SendFinalComplete())
	<-done

	wire := buf.String()
	assert.Contains(t, wire, "event: chunk\ndata: {\"content\":\"Bonjour\"}\n\n")
	assert.Contains(t, wire, "event: llm_complete\ndata: {\"finished\":true}\n\n")
	assert.Contains(t, wire, "event: end\ndata: {\"finished\":true}\n\n")
}

type failingWriter struct {
	writes int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > 1 {
		return 0, errors.New("connection reset")
	}
	return len(p), nil
}

func TestBus_ClientDisconnectDropsFurtherSends(t *testing.T) {
	b := NewBus(0)
	w := &failingWriter{}

	drainErr := make(chan error, 1)
	go func() {
		drainErr <- b.Drain(w)
	}()

	require.NoError(t, b.SendChunk("first"))
	require.NoError(t, b.SendChunk("second"))
	require.Error(t, <-drainErr)

	// writer is gone: sends are dropped without blocking
	for i := 0; i < 100; i++ {
		require.NoError(t, b.SendChunk("dropped"))
	}
}

func TestBus_ChunkPacing(t *testing.T) {
	delay := 20 * time.Millisecond
	b := NewBus(delay)

	start := time.Now()
	types := drainToBuffer(t, b, func() {
		require.NoError(t, b.SendChunk("un"))
		require.NoError(t, b.SendChunk("deux"))
		require.NoError(t, b.SendChunk("trois"))
		require.NoError(t, b.SendLlmComplete())
		require.NoError(t, b.SendFinalComplete())
	})
	elapsed := time.Since(start)

	assert.Equal(t, []string{"chunk", "chunk", "chunk", "llm_complete", "end"}, types)
	assert.GreaterOrEqual(t, elapsed, 3*delay, "each chunk must be followed by the configured delay")
}

func TestBus_OnlyChunksArePaced(t *testing.T) {
	delay := 50 * time.Millisecond
	b := NewBus(delay)

	start := time.Now()
	drainToBuffer(t, b, func() {
		require.NoError(t, b.SendLlmComplete())
		require.NoError(t, b.SendDownloadStep("étape"))
		require.NoError(t, b.SendDownloadReady(DownloadInfo{Available: true, Status: "ready"}))
		require.NoError(t, b.SendFinalComplete())
	})
	elapsed := time.Since(start)

	assert.Less(t, elapsed, delay, "non-chunk events must not be delayed")
}
