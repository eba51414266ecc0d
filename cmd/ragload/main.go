package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"construction-chatbot-be/internal/config"
	"construction-chatbot-be/internal/dto"
	"construction-chatbot-be/internal/pkg/logger"
	"construction-chatbot-be/internal/repository/implementation"
	"construction-chatbot-be/internal/service"
	"construction-chatbot-be/pkg/database"
	"construction-chatbot-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type datasetFile struct {
	Version  string               `json:"version"`
	Examples []datasetExampleBody `json:"examples"`
}

type datasetExampleBody struct {
	Question string                 `json:"question"`
	Query    string                 `json:"query"`
	Intent   string                 `json:"intent"`
	Metadata map[string]interface{} `json:"metadata"`
	Tags     []string               `json:"tags"`
}

func main() {
	datasetPath := flag.String("dataset", "config/rag/dataset_examples.json", "path to the example dataset")
	flag.Parse()

	cfg := config.Load()

	raw, err := os.ReadFile(*datasetPath)
	if err != nil {
		log.Fatalf("Error: failed to read dataset %s: %v", *datasetPath, err)
	}

	var dataset datasetFile
	if err := json.Unmarshal(raw, &dataset); err != nil {
		log.Fatalf("Error: invalid dataset file: %v", err)
	}
	log.Printf("Loaded dataset version %s with %d examples", dataset.Version, len(dataset.Examples))

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatalf("Error: failed to connect to database: %v", err)
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, false)
	ragRepository := implementation.NewRagExampleRepository(db)

	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	} else {
		embeddingProvider = embedding.NewLocalProvider(cfg.Ai.EmbeddingBaseURL)
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	publisherService := service.NewPublisherService(cfg.Chatbot.EmbedExampleTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Chatbot.EmbedExampleTopic,
		ragRepository,
		embeddingProvider,
		sysLogger,
	)
	ragService := service.NewRagService(ragRepository, embeddingProvider, publisherService, sysLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumerService.Consume(ctx); err != nil {
			log.Printf("Consumer error: %v", err)
		}
	}()

	added := 0
	for _, ex := range dataset.Examples {
		res, err := ragService.AddExample(ctx, &dto.AddExampleRequest{
			Question: ex.Question,
			Query:    ex.Query,
			Intent:   ex.Intent,
			Metadata: ex.Metadata,
			Tags:     ex.Tags,
		})
		if err != nil {
			log.Printf("Error adding example %q: %v", ex.Question, err)
			continue
		}
		if res.Active {
			log.Printf("Example already active, skipping: %q", ex.Question)
			continue
		}
		added++
	}
	log.Printf("Queued %d examples for embedding", added)

	// The consumer activates examples as embeddings arrive; wait for it
	// to catch up before reporting.
	deadline := time.After(60 * time.Second)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

wait:
	for added > 0 {
		select {
		case <-deadline:
			log.Println("Warning: timed out waiting for embeddings, some examples may stay inactive")
			break wait
		case <-ticker.C:
			stats, err := ragService.Stats(ctx)
			if err != nil {
				continue
			}
			if stats.ActiveExamples >= stats.TotalExamples {
				break wait
			}
		}
	}

	stats, err := ragService.Stats(ctx)
	if err != nil {
		log.Fatalf("Error: failed to read stats: %v", err)
	}

	log.Printf("Dataset loaded: %d examples, %d active", stats.TotalExamples, stats.ActiveExamples)
	for _, row := range stats.PerIntent {
		log.Printf("  %-9s %3d examples (total usage %d)", row.Intent, row.Count, row.TotalUsage)
	}
}
