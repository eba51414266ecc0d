package bootstrap

import (
	"log"

	"construction-chatbot-be/internal/config"
	"construction-chatbot-be/internal/controller"
	"construction-chatbot-be/internal/pkg/logger"
	"construction-chatbot-be/internal/repository/implementation"
	"construction-chatbot-be/internal/service"
	"construction-chatbot-be/pkg/embedding"
	"construction-chatbot-be/pkg/executor"
	"construction-chatbot-be/pkg/generate"
	"construction-chatbot-be/pkg/intent"
	"construction-chatbot-be/pkg/llm/factory"
	"construction-chatbot-be/pkg/safety"
	"construction-chatbot-be/pkg/schema"
	"construction-chatbot-be/pkg/storage"
	"construction-chatbot-be/pkg/textnorm"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatbotController controller.IChatbotController
	RagController     controller.IRagController

	// Background services (exposed for main.go to run)
	ConsumerService service.IConsumerService

	// Infrastructure owned by the container, closed on shutdown
	ObjectStore storage.ObjectStore
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.EmbeddingModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	} else {
		embeddingProvider = embedding.NewLocalProvider(cfg.Ai.EmbeddingBaseURL)
		log.Printf("[INFO] Using Embedding Provider: LOCAL (%s)", cfg.Ai.EmbeddingBaseURL)
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OpenAIAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Data access
	ragRepository := implementation.NewRagExampleRepository(db)

	esClient := executor.NewESClient(cfg.Search.URL)
	esExecutor := executor.NewESExecutor(esClient, cfg.Search.Index)
	esSchema := schema.NewESSchema(esClient, cfg.Search.Index)

	sqlExecutor := executor.NewSQLExecutor(db)
	sqlSchema := schema.NewSQLSchema(db, cfg.Chatbot.AllowedTables)

	objectStore, err := storage.NewBadgerStore(cfg.Archive.ObjectStorePath)
	if err != nil {
		log.Fatalf("[FATAL] Failed to open object store at %s: %v", cfg.Archive.ObjectStorePath, err)
	}

	// 5. Services
	publisherService := service.NewPublisherService(cfg.Chatbot.EmbedExampleTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Chatbot.EmbedExampleTopic,
		ragRepository,
		embeddingProvider,
		sysLogger,
	)

	ragService := service.NewRagService(ragRepository, embeddingProvider, publisherService, sysLogger)
	archiveService := service.NewArchiveService(
		objectStore,
		cfg.Archive.DownloadsDir,
		cfg.Archive.DownloadsURL,
		sysLogger,
	)

	responseGenerator := generate.NewResponseGenerator(llmProvider)

	chatbotService := service.NewChatbotService(service.ChatbotDeps{
		Normalizer:     textnorm.NewNormalizer(),
		Classifier:     intent.NewClassifier(llmProvider),
		RagService:     ragService,
		SQLGenerator:   generate.NewSQLGenerator(llmProvider),
		ESGenerator:    generate.NewESGenerator(llmProvider),
		Narrator:       responseGenerator,
		SQLValidator:   safety.NewSQLValidator(cfg.Chatbot.AllowedTables),
		ESValidator:    safety.NewESValidator(),
		SQLSchema:      sqlSchema,
		ESSchema:       esSchema,
		SQLExecutor:    sqlExecutor,
		ESExecutor:     esExecutor,
		ArchiveService: archiveService,
		Config:         cfg.Chatbot,
		AllowedTables:  cfg.Chatbot.AllowedTables,
		Logger:         sysLogger,
	})

	streamingService := service.NewStreamingService(chatbotService, responseGenerator, archiveService, sysLogger)

	// 6. Controllers
	return &Container{
		ChatbotController: controller.NewChatbotController(
			chatbotService,
			streamingService,
			cfg.Chatbot.ChunkDelay,
			sysLogger,
		),
		RagController: controller.NewRagController(ragService),

		ConsumerService: consumerService,
		ObjectStore:     objectStore,
	}
}
