package controller

import (
	"github.com/gofiber/fiber/v2"

	"construction-chatbot-be/internal/dto"
	"construction-chatbot-be/internal/pkg/serverutils"
	"construction-chatbot-be/internal/service"
)

type IRagController interface {
	RegisterRoutes(r fiber.Router)
	AddExample(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type ragController struct {
	ragService service.IRagService
}

func NewRagController(ragService service.IRagService) IRagController {
	return &ragController{
		ragService: ragService,
	}
}

func (c *ragController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/rag")
	h.Post("examples", c.AddExample)
	h.Get("stats", c.Stats)
}

func (c *ragController) AddExample(ctx *fiber.Ctx) error {
	var req dto.AddExampleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.ragService.AddExample(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success add example", res))
}

func (c *ragController) Stats(ctx *fiber.Ctx) error {
	res, err := c.ragService.Stats(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get rag stats", res))
}
