package checkout

import (
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/pet-shop-storefront/internal/order"
	"github.com/wichananm65/pet-shop-storefront/internal/owner"
)

type Handler struct {
	service        *Service
	frontendResult string
	log            *slog.Logger
}

func NewHandler(s *Service, frontendResult string, log *slog.Logger) *Handler {
	return &Handler{service: s, frontendResult: frontendResult, log: log}
}

func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Post("/api/v1/orders", h.placeOrder)
	app.Get("/api/v1/payment/vnpay/ipn", h.ipn)
	app.Get("/api/v1/payment/vnpay/return", h.paymentReturn)
}

type placeOrderRequest struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Address       string `json:"address"`
	Note          string `json:"note"`
	PaymentMethod string `json:"paymentMethod"`
	BankCode      string `json:"bankCode"`
	Locale        string `json:"locale"`
}

type ipnAck struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

var confirmSuccess = ipnAck{RspCode: "00", Message: "Confirm Success"}

func (h *Handler) placeOrder(c *fiber.Ctx) error {
	payload := new(placeOrderRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	contact := order.Contact{
		Name:    payload.Name,
		Phone:   payload.Phone,
		Email:   payload.Email,
		Address: payload.Address,
		Note:    payload.Note,
	}
	buyer := owner.FromCtx(c)

	switch order.PaymentMethod(strings.ToLower(strings.TrimSpace(payload.PaymentMethod))) {
	case order.MethodCOD:
		ord, err := h.service.PlaceCashOnDelivery(c.UserContext(), buyer, contact)
		if err != nil {
			return h.writeError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"order": ord})
	case order.MethodVNPay:
		ord, payURL, err := h.service.PlaceGatewayPayment(c.UserContext(), buyer, contact, GatewayOptions{
			ClientIP: c.IP(),
			BankCode: payload.BankCode,
			Locale:   payload.Locale,
		})
		if err != nil {
			return h.writeError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"order": ord, "paymentUrl": payURL})
	default:
		return h.writeError(c, ErrUnknownPaymentMethod)
	}
}

// ipn always acknowledges; verification failures are logged by the service.
func (h *Handler) ipn(c *fiber.Ctx) error {
	q, err := callbackQuery(c)
	if err == nil {
		_, err = h.service.ReconcileGatewayCallback(c.UserContext(), q)
	}
	if err != nil {
		h.log.Warn("vnpay ipn not applied", "err", err)
	}
	return c.JSON(confirmSuccess)
}

func (h *Handler) paymentReturn(c *fiber.Ctx) error {
	status := "invalid"
	q, err := callbackQuery(c)
	if err == nil {
		var out Outcome
		out, err = h.service.ReconcileGatewayCallback(c.UserContext(), q)
		switch {
		case err != nil:
			h.log.Warn("vnpay return not applied", "err", err)
		case out.PaymentStatus != "":
			status = strings.ToLower(string(out.PaymentStatus))
		default:
			status = "unknown"
		}
	}

	target, perr := url.Parse(h.frontendResult)
	if perr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "invalid result url"})
	}
	v := target.Query()
	v.Set("orderId", q.Get("vnp_TxnRef"))
	v.Set("status", status)
	target.RawQuery = v.Encode()
	return c.Redirect(target.String(), fiber.StatusFound)
}

func callbackQuery(c *fiber.Ctx) (url.Values, error) {
	return url.ParseQuery(string(c.Request().URI().QueryString()))
}

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, owner.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	case errors.Is(err, ErrInvalidContact), errors.Is(err, ErrUnknownPaymentMethod):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, ErrCartEmpty), errors.Is(err, order.ErrCartConsumed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, ErrGatewayDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": err.Error()})
	default:
		h.log.Error("checkout failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "checkout failed"})
	}
}
