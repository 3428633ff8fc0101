package order

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/pet-shop-storefront/internal/owner"
)

func makeAppWithOrderHandler(h *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			id, err := strconv.Atoi(v)
			if err == nil {
				claims := jwt.MapClaims{"user_id": id, "role": c.Get("X-Role")}
				tok := &jwt.Token{Claims: claims}
				c.Locals("user", tok)
			}
		}
		return c.Next()
	})
	h.RegisterRoutes(app)
	h.RegisterAdminRoutes(app)
	return app
}

func TestOrderRoutes(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	err := repo.Create(context.Background(), Order{
		ID:            "ord-1",
		Owner:         owner.Key{UserID: 5},
		Contact:       Contact{Name: "Ploy", Phone: "0811", Address: "Chiang Mai"},
		OrderedAt:     time.Now(),
		TotalAmount:   decimal.NewFromInt(250000),
		OrderStatus:   StatusPending,
		PaymentMethod: MethodCOD,
		PaymentStatus: PaymentPending,
	}, false)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	h := NewHandler(NewService(repo), NewGuard(repo), slog.New(slog.NewTextHandler(io.Discard, nil)))
	app := makeAppWithOrderHandler(h)

	// owner sees their order
	req := httptest.NewRequest("GET", "/api/v1/orders/ord-1", nil)
	req.Header.Set("X-User-ID", "5")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", res.StatusCode)
	}

	// another customer does not
	req = httptest.NewRequest("GET", "/api/v1/orders/ord-1", nil)
	req.Header.Set("X-User-ID", "6")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for stranger, got %d", res.StatusCode)
	}

	req = httptest.NewRequest("GET", "/api/v1/orders/me", nil)
	req.Header.Set("X-User-ID", "5")
	res, _ = app.Test(req)
	b, _ := io.ReadAll(res.Body)
	if res.StatusCode != fiber.StatusOK || !strings.Contains(string(b), "ord-1") {
		t.Fatalf("expected own order listed, got %d %s", res.StatusCode, b)
	}

	res, _ = app.Test(httptest.NewRequest("GET", "/api/v1/orders/me", nil))
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", res.StatusCode)
	}

	// admin routes need the staff role
	req = httptest.NewRequest("GET", "/api/v1/admin/orders", nil)
	req.Header.Set("X-User-ID", "5")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", res.StatusCode)
	}

	patch := func(path, body string) (int, string) {
		req := httptest.NewRequest("PATCH", path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", "1")
		req.Header.Set("X-Role", "admin")
		res, _ := app.Test(req)
		b, _ := io.ReadAll(res.Body)
		return res.StatusCode, string(b)
	}

	code, body := patch("/api/v1/admin/orders/ord-1/status", `{"status":"Processing"}`)
	if code != fiber.StatusOK || !strings.Contains(body, `"success":true`) {
		t.Fatalf("expected success, got %d %s", code, body)
	}

	code, body = patch("/api/v1/admin/orders/ord-1/status", `{"status":"Pending"}`)
	if code != fiber.StatusConflict || body != `{"message":"update failed","success":false}` {
		t.Fatalf("expected update failed, got %d %s", code, body)
	}

	code, _ = patch("/api/v1/admin/orders/ord-1/payment-status", `{"status":"Bogus"}`)
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", code)
	}

	code, _ = patch("/api/v1/admin/orders/nope/status", `{"status":"Processing"}`)
	if code != fiber.StatusNotFound {
		t.Fatalf("expected 404 for missing order, got %d", code)
	}

	code, body = patch("/api/v1/admin/orders/ord-1/payment-status", `{"status":"Paid"}`)
	if code != fiber.StatusOK || !strings.Contains(body, `"success":true`) {
		t.Fatalf("expected success, got %d %s", code, body)
	}
	o, _ := repo.Get(context.Background(), "ord-1")
	if o.PaymentStatus != PaymentPaid || o.PaidAt == nil {
		t.Fatalf("expected paid with timestamp, got %+v", o)
	}

	// an order updated through the router stays reachable by its id
	for i := 0; i < 20; i++ {
		patch("/api/v1/admin/orders/xxxxx/status", `{"status":"Processing"}`)
	}
	code, _ = patch("/api/v1/admin/orders/ord-1/status", `{"status":"Shipped"}`)
	if code != fiber.StatusOK {
		t.Fatalf("expected ord-1 still updatable, got %d", code)
	}

	err = repo.Create(context.Background(), Order{
		ID:            "ord-2",
		Owner:         owner.Key{UserID: 5},
		OrderedAt:     time.Now(),
		TotalAmount:   decimal.NewFromInt(250000),
		OrderStatus:   StatusAwaitingPayment,
		PaymentMethod: MethodVNPay,
		PaymentStatus: PaymentPending,
	}, false)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	code, body = patch("/api/v1/admin/orders/ord-2/status", `{"status":"Pending"}`)
	if code != fiber.StatusConflict || body != `{"message":"update failed","success":false}` {
		t.Fatalf("expected awaiting gateway order to stay put, got %d %s", code, body)
	}
}
