package service

import (
	"context"
	"encoding/json"
	"time"

	"construction-chatbot-be/internal/dto"
	"construction-chatbot-be/internal/pkg/logger"
	"construction-chatbot-be/internal/repository/contract"
	"construction-chatbot-be/internal/repository/specification"
	"construction-chatbot-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService embeds freshly added examples in the background and
// activates them so retrieval picks them up.
type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	repository        contract.RagExampleRepository
	embeddingProvider embedding.EmbeddingProvider
	logger            logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	repository contract.RagExampleRepository,
	embeddingProvider embedding.EmbeddingProvider,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		repository:        repository,
		embeddingProvider: embeddingProvider,
		logger:            log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage acks permanently bad messages to avoid infinite retry
// and nacks transient failures.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedExampleMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("consumer", "Failed to unmarshal embed message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack()
		return
	}

	example, err := cs.repository.FindOne(ctx, specification.ByID{ID: payload.ExampleId})
	if err != nil {
		cs.logger.Error("consumer", "Failed to load example", map[string]interface{}{
			"example_id": payload.ExampleId.String(),
			"error":      err.Error(),
		})
		msg.Nack()
		return
	}
	if example == nil {
		cs.logger.Warn("consumer", "Example not found, dropping message", map[string]interface{}{
			"example_id": payload.ExampleId.String(),
		})
		msg.Ack()
		return
	}

	vector, err := cs.embeddingProvider.Generate(ctx, example.Question)
	if err != nil {
		cs.logger.Error("consumer", "Failed to generate embedding", map[string]interface{}{
			"example_id": example.Id.String(),
			"error":      err.Error(),
		})
		msg.Nack()
		return
	}

	example.Embedding = vector
	example.Active = true
	now := time.Now()
	example.UpdatedAt = &now

	if err := cs.repository.Update(ctx, example); err != nil {
		cs.logger.Error("consumer", "Failed to activate example", map[string]interface{}{
			"example_id": example.Id.String(),
			"error":      err.Error(),
		})
		msg.Nack()
		return
	}

	cs.logger.Info("consumer", "Example embedded and activated", map[string]interface{}{
		"example_id": example.Id.String(),
	})
	msg.Ack()
}
