package sse

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrStreamEnded is returned by Send* calls after the end event.
var ErrStreamEnded = errors.New("sse: stream already ended")

// Protocol stages. Transitions enforce the event ordering:
// chunk* llm_complete (download_step* (download_ready|download_error))? end
type stage int

const (
	stageNarration stage = iota // chunks flowing
	stagePost                   // narration complete, download phase may open
	stageDownload               // download steps flowing
	stageFinal                  // download resolved, only end remains
	stageEnded
)

// Bus carries events from the pipeline to the stream writer. Producers
// call the Send* methods; exactly one goroutine drains the bus with
// Drain. Sends after a client disconnect are dropped.
type Bus struct {
	events     chan Event
	done       chan struct{}
	chunkDelay time.Duration

	mu         sync.Mutex
	stage      stage
	chanClosed bool
}

// NewBus creates a bus with the given inter-chunk delay. A zero delay
// disables pacing.
func NewBus(chunkDelay time.Duration) *Bus {
	return &Bus{
		events:     make(chan Event, 64),
		done:       make(chan struct{}),
		chunkDelay: chunkDelay,
	}
}

// SendChunk delivers one fragment of the narrated answer.
func (b *Bus) SendChunk(content string) error {
	return b.send(Event{Type: EventChunk, Data: map[string]any{"content": content}}, stageNarration)
}

// SendLlmComplete marks the narration as finished.
func (b *Bus) SendLlmComplete() error {
	return b.send(Event{Type: EventLlmComplete, Data: map[string]any{"finished": true}}, stagePost)
}

// SendDownloadStep reports progress while the archive is assembled.
func (b *Bus) SendDownloadStep(message string) error {
	return b.send(Event{Type: EventDownloadStep, Data: map[string]any{"message": message}}, stageDownload)
}

// SendDownloadReady tells the client the archive can be fetched.
func (b *Bus) SendDownloadReady(info DownloadInfo) error {
	return b.send(Event{Type: EventDownloadReady, Data: map[string]any{"download": info}}, stageFinal)
}

// SendDownloadError tells the client the archive could not be built.
func (b *Bus) SendDownloadError(info DownloadInfo) error {
	return b.send(Event{Type: EventDownloadError, Data: map[string]any{"download": info}}, stageFinal)
}

// SendFinalComplete emits the end event and seals the stream.
func (b *Bus) SendFinalComplete() error {
	return b.send(Event{Type: EventEnd, Data: map[string]any{"finished": true}}, stageEnded)
}

// SendError reports a pipeline failure and seals the stream. It is
// valid at any point before end.
func (b *Bus) SendError(message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stage == stageEnded {
		return ErrStreamEnded
	}

	b.push(Event{Type: EventError, Data: map[string]any{"content": "Erreur: " + message}})
	b.push(Event{Type: EventEnd, Data: map[string]any{"finished": true, "hasError": true}})
	b.seal()
	return nil
}

func (b *Bus) send(ev Event, next stage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stage == stageEnded {
		return ErrStreamEnded
	}
	if !transitionAllowed(b.stage, next) {
		return fmt.Errorf("sse: %s event not allowed in current stream state", ev.Type)
	}

	b.push(ev)
	b.stage = next
	if next == stageEnded {
		b.seal()
	}
	return nil
}

// transitionAllowed encodes the ordering grammar. next is the stage the
// event being sent belongs to; staying in place or moving forward along
// the grammar is allowed, moving backwards is not.
func transitionAllowed(current, next stage) bool {
	switch current {
	case stageNarration:
		return next == stageNarration || next == stagePost
	case stagePost:
		return next == stageDownload || next == stageFinal || next == stageEnded
	case stageDownload:
		return next == stageDownload || next == stageFinal
	case stageFinal:
		return next == stageEnded
	default:
		return false
	}
}

// push hands the event to the writer, dropping it when the writer is
// gone. Callers hold b.mu.
func (b *Bus) push(ev Event) {
	if b.chanClosed {
		return
	}
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

// seal closes the event channel so the writer drains and exits.
// Callers hold b.mu.
func (b *Bus) seal() {
	b.stage = stageEnded
	if !b.chanClosed {
		b.chanClosed = true
		close(b.events)
	}
}
