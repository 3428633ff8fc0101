package owner

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

func TestFromCtx(t *testing.T) {
	anon := "0b7f3c4e-9a3e-4a8e-9d2b-6f1f3c2a7e10"
	var got Key
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if c.Get("X-User") == "1" {
			c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{"user_id": float64(9)}})
		}
		return c.Next()
	})
	app.Get("/", func(c *fiber.Ctx) error {
		got = FromCtx(c)
		return nil
	})

	cases := []struct {
		name   string
		user   bool
		cookie string
		want   Key
	}{
		{"nobody", false, "", Key{}},
		{"anonymous", false, anon, Key{AnonID: anon}},
		{"garbage cookie", false, "not-a-uuid", Key{}},
		{"user wins over cookie", true, anon, Key{UserID: 9}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tc.user {
				req.Header.Set("X-User", "1")
			}
			if tc.cookie != "" {
				req.Header.Set("Cookie", CookieName+"="+tc.cookie)
			}
			if _, err := app.Test(req); err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestEnsure_IssuesCookie(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(Ensure(c).String())
	})
	res, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, ck := range res.Cookies() {
		if ck.Name == CookieName && ck.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s cookie to be issued", CookieName)
	}
}

func TestKeyValid(t *testing.T) {
	if err := (Key{}).Valid(); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := (Key{UserID: 1}).Valid(); err != nil {
		t.Fatalf("expected valid key, got %v", err)
	}
}
