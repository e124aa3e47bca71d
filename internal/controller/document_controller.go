package controller

import (
	"time"

	"collab-editor-be/internal/pkg/serverutils"
	"collab-editor-be/internal/relay"
	"collab-editor-be/internal/repository/contract"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
	GetStatus(ctx *fiber.Ctx) error
	RefreshSession(ctx *fiber.Ctx) error
}

type DocumentStatus struct {
	Document string `json:"document"`
	Open     bool   `json:"open"`
	Clients  int    `json:"clients"`
	Logged   int64  `json:"logged_updates"`
}

type documentController struct {
	hub      *relay.Hub
	updates  contract.DocumentUpdateRepository
	auth     *relay.Authenticator
	tokenTTL time.Duration
}

func NewDocumentController(hub *relay.Hub, updates contract.DocumentUpdateRepository, auth *relay.Authenticator, tokenTTL time.Duration) IDocumentController {
	return &documentController{hub: hub, updates: updates, auth: auth, tokenTTL: tokenTTL}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)

	authed := serverutils.JwtMiddleware(c.auth)
	r.Get("/documents/:name", authed, c.GetStatus)
	r.Post("/session/refresh", authed, c.RefreshSession)
}

func (c *documentController) Health(ctx *fiber.Ctx) error {
	rooms, clients := c.hub.Stats()
	return ctx.JSON(serverutils.SuccessResponse("ok", fiber.Map{
		"instance": c.hub.Instance(),
		"rooms":    rooms,
		"clients":  clients,
	}))
}

func (c *documentController) GetStatus(ctx *fiber.Ctx) error {
	name := ctx.Params("name")

	logged, err := c.updates.Count(ctx.Context(), name)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	status := DocumentStatus{Document: name, Logged: logged}
	if room, ok := c.hub.Room(name); ok {
		status.Open = true
		status.Clients = room.Clients()
	}
	return ctx.JSON(serverutils.SuccessResponse("Document status", status))
}

// RefreshSession reissues the caller's token. Any 2xx answer tells an
// editor session its credentials are usable again.
func (c *documentController) RefreshSession(ctx *fiber.Ctx) error {
	userID, _ := ctx.Locals("user_id").(string)
	token, err := c.auth.Issue(userID, c.tokenTTL)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Session refreshed", fiber.Map{"token": token}))
}
