package order

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/wichananm65/pet-shop-storefront/internal/owner"
	"github.com/wichananm65/pet-shop-storefront/internal/user"
)

type Handler struct {
	service *Service
	guard   *Guard
	log     *slog.Logger
}

func NewHandler(s *Service, g *Guard, log *slog.Logger) *Handler {
	return &Handler{service: s, guard: g, log: log}
}

func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/api/v1/orders/me", h.listMine)
	app.Get("/api/v1/orders/:id", h.getOrder)
}

func (h *Handler) RegisterAdminRoutes(app fiber.Router) {
	admin := app.Group("/api/v1/admin", user.RequireStaff)
	admin.Get("/orders", h.listAll)
	admin.Patch("/orders/:id/payment-status", h.updatePaymentStatus)
	admin.Patch("/orders/:id/status", h.updateOrderStatus)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) listMine(c *fiber.Ctx) error {
	orders, err := h.service.ListMine(c.UserContext(), owner.FromCtx(c))
	if err != nil {
		if errors.Is(err, owner.ErrUnauthorized) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(orders)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	o, err := h.service.GetForCaller(c.UserContext(), utils.CopyString(c.Params("id")), owner.FromCtx(c), user.IsStaff(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(o)
}

func (h *Handler) listAll(c *fiber.Ctx) error {
	orders, err := h.service.ListAll(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(orders)
}

func (h *Handler) updatePaymentStatus(c *fiber.Ctx) error {
	payload := new(statusRequest)
	if err := c.BodyParser(payload); err != nil {
		return updateFailed(c, fiber.StatusBadRequest)
	}
	id := utils.CopyString(c.Params("id"))
	if err := h.guard.UpdatePaymentStatus(c.UserContext(), id, payload.Status); err != nil {
		h.log.Warn("payment status update rejected", "order_id", id, "target", payload.Status, "err", err)
		return updateFailed(c, statusFor(err))
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) updateOrderStatus(c *fiber.Ctx) error {
	payload := new(statusRequest)
	if err := c.BodyParser(payload); err != nil {
		return updateFailed(c, fiber.StatusBadRequest)
	}
	id := utils.CopyString(c.Params("id"))
	if err := h.guard.UpdateOrderStatus(c.UserContext(), id, payload.Status); err != nil {
		h.log.Warn("order status update rejected", "order_id", id, "target", payload.Status, "err", err)
		return updateFailed(c, statusFor(err))
	}
	return c.JSON(fiber.Map{"success": true})
}

// updateFailed keeps the boolean contract: the body never says why.
func updateFailed(c *fiber.Ctx, status int) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": "update failed"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidStatus):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrGatewayManaged):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
