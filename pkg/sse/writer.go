package sse

import (
	"io"
	"time"
)

type flusher interface {
	Flush() error
}

// Drain is the single writer of the bus: it encodes every event to w
// in order, flushing after each one, until the stream is sealed. A
// write or flush failure means the client is gone; Drain stops the bus
// so pending Send* calls are dropped, and returns the error.
func (b *Bus) Drain(w io.Writer) error {
	defer close(b.done)

	for ev := range b.events {
		encoded, err := ev.Encode()
		if err != nil {
			return err
		}
		if _, err := w.Write(encoded); err != nil {
			return err
		}
		if f, ok := w.(flusher); ok {
			if err := f.Flush(); err != nil {
				return err
			}
		}

		// Pacing makes the text appear word by word on the client.
		if b.chunkDelay > 0 && ev.Type == EventChunk {
			time.Sleep(b.chunkDelay)
		}
	}
	return nil
}
