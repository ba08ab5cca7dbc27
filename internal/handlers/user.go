package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/validation"
)

// PaymentMethods is the fixed set checkout accepts.
var PaymentMethods = []string{"PayPal", "Stripe", "CashOnDelivery"}

type UserHandler struct {
	DB     *gorm.DB
	Secret []byte
}

func (h *UserHandler) currentUser(c echo.Context) (*models.User, error) {
	ck, err := c.Cookie(session.CookieName)
	if err != nil || ck.Value == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "sign in required")
	}
	claims, err := session.Parse(ck.Value, h.Secret)
	if err != nil {
		return nil, apperr.New(apperr.KindUnauthorized, "sign in required")
	}

	var user models.User
	if err := h.DB.First(&user, claims.UserID).Error; err != nil {
		return nil, apperr.New(apperr.KindUnauthorized, "sign in required")
	}
	return &user, nil
}

func (h *UserHandler) UpdateAddress(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return fail(c, err)
	}

	var addr models.ShippingAddress
	if err := c.Bind(&addr); err != nil {
		return fail(c, apperr.New(apperr.KindValidation, "invalid body"))
	}

	if fieldErrs := validation.ShippingAddress.Apply(map[string]string{
		"full_name":   addr.FullName,
		"street":      addr.Street,
		"city":        addr.City,
		"postal_code": addr.PostalCode,
		"country":     addr.Country,
	}); fieldErrs != nil {
		return fail(c, apperr.Validation(fieldErrs))
	}

	if err := h.DB.Model(user).Update("address", &addr).Error; err != nil {
		return fail(c, apperr.Wrap(apperr.KindInternal, "cannot update address", err))
	}
	return c.JSON(http.StatusOK, apperr.OK("address updated successfully", addr))
}

func (h *UserHandler) UpdatePaymentMethod(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return fail(c, err)
	}

	var req struct {
		Type string `json:"type"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, apperr.New(apperr.KindValidation, "invalid body"))
	}

	valid := false
	for _, m := range PaymentMethods {
		if req.Type == m {
			valid = true
			break
		}
	}
	if !valid {
		return fail(c, apperr.Validation(map[string][]string{
			"type": {"Payment method must be one of: PayPal, Stripe, CashOnDelivery"},
		}))
	}

	if err := h.DB.Model(user).Update("payment_method", req.Type).Error; err != nil {
		return fail(c, apperr.Wrap(apperr.KindInternal, "cannot update payment method", err))
	}
	return c.JSON(http.StatusOK, apperr.OK("payment method updated", req.Type))
}
