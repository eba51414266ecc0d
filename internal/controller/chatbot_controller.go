package controller

import (
	"bufio"
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"construction-chatbot-be/internal/dto"
	"construction-chatbot-be/internal/pkg/logger"
	"construction-chatbot-be/internal/pkg/serverutils"
	"construction-chatbot-be/internal/service"
	"construction-chatbot-be/pkg/sse"
)

type IChatbotController interface {
	RegisterRoutes(r fiber.Router)
	Ask(ctx *fiber.Ctx) error
	AskStream(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
}

type chatbotController struct {
	chatbotService   service.IChatbotService
	streamingService service.IStreamingService
	chunkDelay       time.Duration
	logger           logger.ILogger
}

func NewChatbotController(
	chatbotService service.IChatbotService,
	streamingService service.IStreamingService,
	chunkDelay time.Duration,
	log logger.ILogger,
) IChatbotController {
	return &chatbotController{
		chatbotService:   chatbotService,
		streamingService: streamingService,
		chunkDelay:       chunkDelay,
		logger:           log,
	}
}

func (c *chatbotController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chatbot")
	h.Post("ask", c.Ask)
	h.Post("ask-stream", c.AskStream)
	h.Get("status", c.Status)
}

func (c *chatbotController) Ask(ctx *fiber.Ctx) error {
	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatbotService.ProcessQuestion(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *chatbotController) AskStream(ctx *fiber.Ctx) error {
	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	// The request context dies with the handler; the stream outlives it.
	// Cancellation is tied to the writer instead: when the client goes
	// away Drain returns and the pipeline context is cancelled.
	question := req.Question
	streamCtx, cancel := context.WithCancel(context.Background())
	bus := sse.NewBus(c.chunkDelay)

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		go c.streamingService.StreamQuestion(streamCtx, question, bus)

		if err := bus.Drain(w); err != nil {
			c.logger.Warn("chatbot", "Client disconnected during stream", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}))

	return nil
}

func (c *chatbotController) Status(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Chatbot status", c.chatbotService.Status()))
}
