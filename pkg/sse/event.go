// Package sse implements the server-sent-event delivery channel of the
// chatbot. A Bus accepts typed events from the pipeline and a single
// writer drains them to the client in order.
package sse

import (
	"encoding/json"
	"fmt"
)

// Event types, in the order the protocol allows them:
// chunk* llm_complete (download_step* (download_ready|download_error))? end
// with error allowed at any point before end.
const (
	EventChunk         = "chunk"
	EventLlmComplete   = "llm_complete"
	EventDownloadStep  = "download_step"
	EventDownloadReady = "download_ready"
	EventDownloadError = "download_error"
	EventError         = "error"
	EventEnd           = "end"
)

// Event is one typed message on the stream.
type Event struct {
	Type string
	Data any
}

// Encode renders the event in SSE wire format:
// "event: <type>\ndata: <json>\n\n".
func (e Event) Encode() ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	return []byte("event: " + e.Type + "\ndata: " + string(payload) + "\n\n"), nil
}

// DownloadInfo is the payload of download_ready / download_error events
// and of the download section of a synchronous answer.
type DownloadInfo struct {
	Available     bool           `json:"available"`
	Status        string         `json:"status"`
	DownloadURL   string         `json:"download_url,omitempty"`
	Filename      string         `json:"filename,omitempty"`
	FileCount     int            `json:"file_count,omitempty"`
	EstimatedSize string         `json:"estimated_size,omitempty"`
	Message       string         `json:"message"`
	Stats         map[string]any `json:"stats,omitempty"`
	ErrorCount    int            `json:"error_count,omitempty"`
	ErrorMessages []string       `json:"error_messages,omitempty"`
}
