package dto

import "github.com/google/uuid"

// PublishEmbedExampleMessage asks the consumer to embed and activate a
// freshly added example.
type PublishEmbedExampleMessage struct {
	ExampleId uuid.UUID `json:"example_id"`
}
