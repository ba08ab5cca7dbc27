package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/validation"
)

// NoName is the placeholder for accounts created without a display
// name; it is replaced with the email local part at first sign-in.
const NoName = "NO_NAME"

const duplicateEmailMsg = "an account with this email already exists"

type AuthHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Secret   []byte
	Secure   bool
}

func fail(c echo.Context, err error) error {
	status, res := apperr.ToResult(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("unhandled_error", "error", err)
	}
	return c.JSON(status, res)
}

func (h *AuthHandler) SignUp(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_signup")

	var req struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("signup_failed", "status", 400, "error", err)
		return fail(c, apperr.New(apperr.KindValidation, "invalid body"))
	}

	fieldErrs := validation.SignUp.Apply(map[string]string{
		"name":             req.Name,
		"email":            req.Email,
		"password":         req.Password,
		"confirm_password": req.ConfirmPassword,
	})
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		if fieldErrs == nil {
			fieldErrs = map[string][]string{}
		}
		fieldErrs["confirm_password"] = append(fieldErrs["confirm_password"], "Passwords don't match")
	}
	if fieldErrs != nil {
		l.Warn("signup_failed", "status", 400, "reason", "validation")
		return fail(c, apperr.Validation(fieldErrs))
	}

	// Pre-flight duplicate check. The unique index is the authority:
	// a racing insert is caught below and answered identically.
	var existing models.User
	err := h.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		l.Warn("signup_failed", "status", 409, "reason", "email_exists")
		return fail(c, duplicateEmail())
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, apperr.Wrap(apperr.KindInternal, "cannot check email", err))
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return fail(c, apperr.Wrap(apperr.KindInternal, "cannot hash password", err))
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: pwHash,
		Role:         "user",
	}
	if err := h.DB.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			l.Warn("signup_failed", "status", 409, "reason", "email_exists")
			return fail(c, duplicateEmail())
		}
		return fail(c, apperr.Wrap(apperr.KindInternal, "cannot create user", err))
	}

	h.publishUserEvent(c, map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	// Auto sign-in, including the session-cart merge a normal sign-in runs.
	if err := h.finishSignIn(c, &user); err != nil {
		return fail(c, err)
	}

	l.Info("signup_success", "userID", user.ID)
	return c.JSON(http.StatusOK, apperr.OK("account created successfully", userView(&user)))
}

func (h *AuthHandler) SignIn(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_signin")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("signin_failed", "status", 400, "error", err)
		return fail(c, apperr.New(apperr.KindValidation, "invalid body"))
	}

	if fieldErrs := validation.SignIn.Apply(map[string]string{
		"email":    req.Email,
		"password": req.Password,
	}); fieldErrs != nil {
		l.Warn("signin_failed", "status", 400, "reason", "validation")
		return fail(c, apperr.Validation(fieldErrs))
	}

	// The same generic answer for unknown email and wrong password,
	// so the response never reveals whether an account exists.
	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		l.Warn("signin_failed", "status", 401, "reason", "invalid_credentials")
		return fail(c, apperr.New(apperr.KindUnauthorized, "invalid email or password"))
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("signin_failed", "status", 401, "reason", "invalid_credentials")
		return fail(c, apperr.New(apperr.KindUnauthorized, "invalid email or password"))
	}

	if user.Name == NoName {
		user.Name = strings.SplitN(user.Email, "@", 2)[0]
		if err := h.DB.Model(&user).Update("name", user.Name).Error; err != nil {
			return fail(c, apperr.Wrap(apperr.KindInternal, "cannot update user name", err))
		}
	}

	if err := h.finishSignIn(c, &user); err != nil {
		return fail(c, err)
	}

	h.publishUserEvent(c, map[string]any{
		"type":   "user_signed_in",
		"userID": user.ID,
		"email":  user.Email,
	})

	l.Info("signin_success", "userID", user.ID)
	return c.JSON(http.StatusOK, apperr.OK("signed in successfully", userView(&user)))
}

func (h *AuthHandler) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_signout")

	if ck, err := c.Cookie(session.CookieName); err == nil && ck.Value != "" {
		if claims, err := session.Parse(ck.Value, h.Secret); err == nil {
			// Carts do not survive sign-out; the next sign-in starts empty.
			if err := h.DB.Where("user_id = ?", claims.UserID).Delete(&models.Cart{}).Error; err != nil {
				return fail(c, apperr.Wrap(apperr.KindInternal, "cannot delete carts", err))
			}
			h.publishUserEvent(c, map[string]any{
				"type":   "user_signed_out",
				"userID": claims.UserID,
			})
			l.Info("signout_success", "userID", claims.UserID)
		}
	}

	c.SetCookie(session.DeleteCookie(session.CookieName, "/"))
	return c.JSON(http.StatusOK, apperr.OK("signed out", nil))
}

// finishSignIn rebinds the anonymous session cart to the user and then
// issues the session cookie. The cookie comes last: a failed merge must
// not leave the caller signed in.
func (h *AuthHandler) finishSignIn(c echo.Context, user *models.User) error {
	if ck, err := c.Cookie(session.CartCookieName); err == nil && ck.Value != "" {
		if err := mergeSessionCart(h.DB, ck.Value, user.ID); err != nil {
			return err
		}
	}

	token, exp, err := session.Issue(session.Claims{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
	}, h.Secret)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "cannot create session", err)
	}
	c.SetCookie(session.CreateCookie(session.CookieName, token, "/", exp, h.Secure))
	return nil
}

// mergeSessionCart transfers the anonymous cart to the user at sign-in.
// When the user already owns a cart, that cart wins and the anonymous
// one is deleted.
func mergeSessionCart(db *gorm.DB, sessionCartID string, userID uint) error {
	var sessionCart models.Cart
	err := db.Where("session_cart_id = ? AND user_id IS NULL", sessionCartID).First(&sessionCart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "cannot load session cart", err)
	}

	var owned int64
	if err := db.Model(&models.Cart{}).Where("user_id = ?", userID).Count(&owned).Error; err != nil {
		return apperr.Wrap(apperr.KindInternal, "cannot count carts", err)
	}
	if owned > 0 {
		if err := db.Delete(&sessionCart).Error; err != nil {
			return apperr.Wrap(apperr.KindInternal, "cannot discard session cart", err)
		}
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		// Guard against a cart created for the user between the count
		// and the rebind: at most one cart per user after merge.
		if err := tx.Where("user_id = ?", userID).Delete(&models.Cart{}).Error; err != nil {
			return apperr.Wrap(apperr.KindInternal, "cannot delete user carts", err)
		}
		if err := tx.Model(&sessionCart).Update("user_id", userID).Error; err != nil {
			return apperr.Wrap(apperr.KindInternal, "cannot rebind cart", err)
		}
		return nil
	})
}

func duplicateEmail() *apperr.Error {
	return &apperr.Error{
		Kind:        apperr.KindConflict,
		Message:     duplicateEmailMsg,
		FieldErrors: map[string][]string{"email": {duplicateEmailMsg}},
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

func userView(u *models.User) map[string]any {
	return map[string]any{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}
}

func (h *AuthHandler) publishUserEvent(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
