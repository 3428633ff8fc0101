// Package owner resolves who a cart or order belongs to: an authenticated
// user id from the JWT, or an anonymous id carried in a cookie.
package owner

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/wichananm65/pet-shop-storefront/internal/user"
)

// CookieName carries the anonymous owner id. The value is encrypted by the
// encryptcookie middleware before it leaves the server.
const CookieName = "cart_owner"

var ErrUnauthorized = errors.New("no resolvable cart owner")

// Key identifies an owner. Exactly one field is set on a valid key.
type Key struct {
	UserID int    `json:"userId,omitempty"`
	AnonID string `json:"anonId,omitempty"`
}

func (k Key) IsZero() bool { return k.UserID <= 0 && k.AnonID == "" }

func (k Key) Valid() error {
	if k.IsZero() {
		return ErrUnauthorized
	}
	return nil
}

func (k Key) String() string {
	if k.UserID > 0 {
		return "user:" + strconv.Itoa(k.UserID)
	}
	return "anon:" + k.AnonID
}

// FromCtx prefers the authenticated user over the anonymous cookie.
func FromCtx(c *fiber.Ctx) Key {
	if id, err := user.GetUserIDFromCtx(c); err == nil && id > 0 {
		return Key{UserID: id}
	}
	if anon := c.Cookies(CookieName); anon != "" {
		if _, err := uuid.Parse(anon); err == nil {
			// the cookie value aliases the request buffer and outlives the request as a map key
			return Key{AnonID: utils.CopyString(anon)}
		}
	}
	return Key{}
}

// Ensure returns the caller's key, issuing a fresh anonymous cookie when the
// caller has no identity at all.
func Ensure(c *fiber.Ctx) Key {
	if k := FromCtx(c); !k.IsZero() {
		return k
	}
	anon := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    anon,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   60 * 60 * 24 * 30,
	})
	return Key{AnonID: anon}
}
