package cart

import (
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/pet-shop-storefront/internal/owner"
	"github.com/wichananm65/pet-shop-storefront/internal/product"
)

func makeAppWithCartHandler(cHandler *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			id, err := strconv.Atoi(v)
			if err == nil {
				claims := jwt.MapClaims{"user_id": id}
				tok := &jwt.Token{Claims: claims}
				c.Locals("user", tok)
			}
		}
		return c.Next()
	})
	cHandler.RegisterRoutes(app)
	return app
}

func TestCartRoutes_Basic(t *testing.T) {
	catalog := product.NewInMemoryRepository([]product.Product{
		{ID: 3, Name: "Scratcher", Price: decimal.NewFromInt(45000)},
	})
	handler := NewHandler(NewService(NewInMemoryRepository(), catalog))
	app := makeAppWithCartHandler(handler)

	// mutations without any identity are rejected
	req := httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(`{"productId":3}`))
	req.Header.Set("Content-Type", "application/json")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous POST without cookie, got %d", res.StatusCode)
	}

	// GET issues an anonymous owner cookie
	res, _ = app.Test(httptest.NewRequest("GET", "/api/v1/cart", nil))
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for GET, got %d", res.StatusCode)
	}
	var anon string
	for _, ck := range res.Cookies() {
		if ck.Name == owner.CookieName {
			anon = ck.Value
		}
	}
	if anon == "" {
		t.Fatalf("expected anonymous cookie to be issued")
	}

	// anonymous owner can add
	req = httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(`{"productId":3,"quantity":2}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", owner.CookieName+"="+anon)
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for anonymous add, got %d", res.StatusCode)
	}
	b, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(b), `"quantity":2`) {
		t.Fatalf("expected quantity 2, got %s", b)
	}

	// signed-in user has a separate cart
	req = httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(`{"productId":3,"quantity":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "42")
	res, _ = app.Test(req)
	b, _ = io.ReadAll(res.Body)
	if res.StatusCode != fiber.StatusOK || !strings.Contains(string(b), `"quantity":1`) {
		t.Fatalf("expected user cart with quantity 1, got %d %s", res.StatusCode, b)
	}

	req = httptest.NewRequest("PATCH", "/api/v1/cart/items/3", strings.NewReader(`{"quantity":4}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "42")
	res, _ = app.Test(req)
	b, _ = io.ReadAll(res.Body)
	if res.StatusCode != fiber.StatusOK || !strings.Contains(string(b), `"quantity":4`) {
		t.Fatalf("expected quantity 4 after patch, got %d %s", res.StatusCode, b)
	}

	req = httptest.NewRequest("PATCH", "/api/v1/cart/items/3", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "42")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for missing quantity, got %d", res.StatusCode)
	}

	req = httptest.NewRequest("DELETE", "/api/v1/cart/items/3", nil)
	req.Header.Set("X-User-ID", "42")
	res, _ = app.Test(req)
	b, _ = io.ReadAll(res.Body)
	if res.StatusCode != fiber.StatusOK || strings.Contains(string(b), `"productId":3`) {
		t.Fatalf("expected product 3 removed, got %d %s", res.StatusCode, b)
	}

	req = httptest.NewRequest("DELETE", "/api/v1/cart/items/3", nil)
	req.Header.Set("X-User-ID", "42")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 removing a missing line, got %d", res.StatusCode)
	}

	req = httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(`{"productId":77}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "42")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", res.StatusCode)
	}
}
