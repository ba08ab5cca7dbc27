package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/session"
)

// identity is who the current request shops as: an authenticated user,
// or failing that the anonymous session-cart token.
type identity struct {
	UserID        *uint
	SessionCartID string
}

func resolveIdentity(c echo.Context, secret []byte) (identity, error) {
	var id identity

	if ck, err := c.Cookie(session.CookieName); err == nil && ck.Value != "" {
		if claims, err := session.Parse(ck.Value, secret); err == nil {
			uid := claims.UserID
			id.UserID = &uid
		}
	}

	ck, err := c.Cookie(session.CartCookieName)
	if err != nil || ck.Value == "" {
		return id, apperr.New(apperr.KindNotFound, "cart session not found")
	}
	id.SessionCartID = ck.Value
	return id, nil
}

// findCart prefers the user-owned cart once the request is
// authenticated and falls back to the anonymous session cart. It never
// fabricates an empty cart.
func findCart(db *gorm.DB, id identity) (*models.Cart, error) {
	var cart models.Cart
	q := db.Where("session_cart_id = ?", id.SessionCartID)
	if id.UserID != nil {
		q = db.Where("user_id = ?", *id.UserID)
	}
	if err := q.First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "no cart found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "cannot load cart", err)
	}
	return &cart, nil
}

// saveCart commits a modified cart guarded by its version column. A
// second writer that raced us makes the UPDATE match zero rows.
func saveCart(db *gorm.DB, cart *models.Cart) error {
	prev := cart.Version
	cart.Version = prev + 1
	res := db.Model(&models.Cart{}).
		Where("id = ? AND version = ?", cart.ID, prev).
		Select("Items", "ItemsPrice", "ShippingPrice", "TaxPrice", "TotalPrice", "Version").
		Updates(cart)
	if res.Error != nil {
		return apperr.Wrap(apperr.KindInternal, "cannot update cart", res.Error)
	}
	if res.RowsAffected == 0 {
		return errVersionConflict
	}
	return nil
}

var errVersionConflict = errors.New("cart version conflict")

// mutate runs a read-modify-write on the identity's cart, retrying once
// when a concurrent writer bumps the version first. A second conflict
// surfaces as a transient failure instead of looping. A cart emptied by
// fn is deleted rather than persisted: carts only exist with items.
func (h *CartHandler) mutate(id identity, fn func(*models.Cart) error) (*models.Cart, error) {
	for attempt := 0; attempt < 2; attempt++ {
		cart, err := findCart(h.DB, id)
		if err != nil {
			return nil, err
		}
		if err := fn(cart); err != nil {
			return nil, err
		}

		if len(cart.Items) == 0 {
			res := h.DB.Where("id = ? AND version = ?", cart.ID, cart.Version).Delete(&models.Cart{})
			if res.Error != nil {
				return nil, apperr.Wrap(apperr.KindInternal, "cannot delete cart", res.Error)
			}
			if res.RowsAffected == 0 {
				continue
			}
			return nil, nil
		}

		err = saveCart(h.DB, cart)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, errVersionConflict) {
			return nil, err
		}
	}
	return nil, apperr.New(apperr.KindTransient, "cart was modified concurrently, please retry")
}

func parseUintParam(c echo.Context, name string) (uint, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return uint(v), nil
}

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", fmt.Sprint(event["sessionCartID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
