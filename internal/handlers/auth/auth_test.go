package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/session"
)

var testSecret = []byte("test_secret")

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Product{}, &models.Cart{}, &models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newHandler(t *testing.T) *AuthHandler {
	return &AuthHandler{DB: initTestDB(t), Secret: testSecret}
}

func doJSON(t *testing.T, method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return rec, echo.New().NewContext(req, rec)
}

func signUpPayload() map[string]string {
	return map[string]string{
		"name":             "Jane Doe",
		"email":            "jane@example.com",
		"password":         "Password1",
		"confirm_password": "Password1",
	}
}

func TestSignUp(t *testing.T) {
	h := newHandler(t)

	rec, c := doJSON(t, http.MethodPost, "/sign-up", signUpPayload())
	require.NoError(t, h.SignUp(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var res apperr.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Success)

	var user models.User
	require.NoError(t, h.DB.Where("email = ?", "jane@example.com").First(&user).Error)
	require.Equal(t, "Jane Doe", user.Name)
	require.Equal(t, "user", user.Role)
	require.NotEqual(t, "Password1", user.PasswordHash)
	require.True(t, hash.CheckPassword(user.PasswordHash, "Password1"))

	// auto sign-in issues the session cookie
	var sessionCookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == session.CookieName {
			sessionCookie = ck
		}
	}
	require.NotNil(t, sessionCookie)
	claims, err := session.Parse(sessionCookie.Value, testSecret)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
}

func TestSignUpMismatchedPasswordsWritesNothing(t *testing.T) {
	h := newHandler(t)

	payload := signUpPayload()
	payload["confirm_password"] = "Different1"

	rec, c := doJSON(t, http.MethodPost, "/sign-up", payload)
	require.NoError(t, h.SignUp(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var res apperr.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.False(t, res.Success)
	require.Contains(t, res.FieldErrors["confirm_password"], "Passwords don't match")

	var count int64
	h.DB.Model(&models.User{}).Count(&count)
	require.Zero(t, count)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	h := newHandler(t)

	pwHash, _ := hash.HashPassword("Password1")
	require.NoError(t, h.DB.Create(&models.User{
		Name: "First", Email: "jane@example.com", PasswordHash: pwHash, Role: "user",
	}).Error)

	rec, c := doJSON(t, http.MethodPost, "/sign-up", signUpPayload())
	require.NoError(t, h.SignUp(c))
	require.Equal(t, http.StatusConflict, rec.Code)

	var res apperr.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.False(t, res.Success)
	require.NotEmpty(t, res.FieldErrors["email"])

	var count int64
	h.DB.Model(&models.User{}).Where("email = ?", "jane@example.com").Count(&count)
	require.Equal(t, int64(1), count)
}

func TestSignInWrongCredentialsIsGeneric(t *testing.T) {
	h := newHandler(t)

	pwHash, _ := hash.HashPassword("Password1")
	require.NoError(t, h.DB.Create(&models.User{
		Name: "Jane", Email: "jane@example.com", PasswordHash: pwHash, Role: "user",
	}).Error)

	// wrong password and unknown email answer with the same message
	recBad, cBad := doJSON(t, http.MethodPost, "/sign-in", map[string]string{
		"email": "jane@example.com", "password": "WrongPass1",
	})
	require.NoError(t, h.SignIn(cBad))
	require.Equal(t, http.StatusUnauthorized, recBad.Code)

	recNone, cNone := doJSON(t, http.MethodPost, "/sign-in", map[string]string{
		"email": "nobody@example.com", "password": "WrongPass1",
	})
	require.NoError(t, h.SignIn(cNone))
	require.Equal(t, http.StatusUnauthorized, recNone.Code)

	var resBad, resNone apperr.Result
	require.NoError(t, json.Unmarshal(recBad.Body.Bytes(), &resBad))
	require.NoError(t, json.Unmarshal(recNone.Body.Bytes(), &resNone))
	require.Equal(t, resBad.Message, resNone.Message)
}

func TestSignInMergesSessionCart(t *testing.T) {
	h := newHandler(t)

	pwHash, _ := hash.HashPassword("Password1")
	user := models.User{Name: "Jane", Email: "jane@example.com", PasswordHash: pwHash, Role: "user"}
	require.NoError(t, h.DB.Create(&user).Error)

	items := []models.CartItem{{ProductID: 1, Name: "Mug", Price: "19.99", Qty: 2}}
	require.NoError(t, h.DB.Create(&models.Cart{
		SessionCartID: "anon-token",
		Items:         items,
		ItemsPrice:    "39.98", ShippingPrice: "10.00", TaxPrice: "4.00", TotalPrice: "53.98",
	}).Error)

	rec, c := doJSON(t, http.MethodPost, "/sign-in", map[string]string{
		"email": "jane@example.com", "password": "Password1",
	}, &http.Cookie{Name: session.CartCookieName, Value: "anon-token"})
	require.NoError(t, h.SignIn(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var cart models.Cart
	require.NoError(t, h.DB.Where("user_id = ?", user.ID).First(&cart).Error)
	require.Equal(t, "anon-token", cart.SessionCartID)
	require.Len(t, cart.Items, 1)
	require.Equal(t, uint(2), cart.Items[0].Qty)
	require.Equal(t, "19.99", cart.Items[0].Price)
}

func TestSignInMergeFailureIssuesNoSession(t *testing.T) {
	h := newHandler(t)

	pwHash, _ := hash.HashPassword("Password1")
	user := models.User{Name: "Jane", Email: "jane@example.com", PasswordHash: pwHash, Role: "user"}
	require.NoError(t, h.DB.Create(&user).Error)

	// break cart storage so the merge step fails mid sign-in
	require.NoError(t, h.DB.Migrator().DropTable(&models.Cart{}))

	rec, c := doJSON(t, http.MethodPost, "/sign-in", map[string]string{
		"email": "jane@example.com", "password": "Password1",
	}, &http.Cookie{Name: session.CartCookieName, Value: "anon-token"})
	require.NoError(t, h.SignIn(c))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	for _, ck := range rec.Result().Cookies() {
		require.NotEqual(t, session.CookieName, ck.Name)
	}
}

func TestSignInKeepsExistingUserCart(t *testing.T) {
	h := newHandler(t)

	pwHash, _ := hash.HashPassword("Password1")
	user := models.User{Name: "Jane", Email: "jane@example.com", PasswordHash: pwHash, Role: "user"}
	require.NoError(t, h.DB.Create(&user).Error)

	owned := models.Cart{
		UserID:        &user.ID,
		SessionCartID: "older-token",
		Items:         []models.CartItem{{ProductID: 5, Name: "Lamp", Price: "30.00", Qty: 1}},
		ItemsPrice:    "30.00", ShippingPrice: "10.00", TaxPrice: "3.00", TotalPrice: "43.00",
	}
	require.NoError(t, h.DB.Create(&owned).Error)
	require.NoError(t, h.DB.Create(&models.Cart{
		SessionCartID: "anon-token",
		Items:         []models.CartItem{{ProductID: 1, Name: "Mug", Price: "19.99", Qty: 1}},
		ItemsPrice:    "19.99", ShippingPrice: "10.00", TaxPrice: "2.00", TotalPrice: "31.99",
	}).Error)

	rec, c := doJSON(t, http.MethodPost, "/sign-in", map[string]string{
		"email": "jane@example.com", "password": "Password1",
	}, &http.Cookie{Name: session.CartCookieName, Value: "anon-token"})
	require.NoError(t, h.SignIn(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// the previously owned cart wins, the anonymous one is gone.
	// Policy decision, confirm before shipping.
	var carts []models.Cart
	require.NoError(t, h.DB.Find(&carts).Error)
	require.Len(t, carts, 1)
	require.Equal(t, owned.ID, carts[0].ID)
	require.Equal(t, uint(5), carts[0].Items[0].ProductID)
}

func TestSignInReplacesPlaceholderName(t *testing.T) {
	h := newHandler(t)

	pwHash, _ := hash.HashPassword("Password1")
	user := models.User{Name: NoName, Email: "jane.doe@example.com", PasswordHash: pwHash, Role: "user"}
	require.NoError(t, h.DB.Create(&user).Error)

	rec, c := doJSON(t, http.MethodPost, "/sign-in", map[string]string{
		"email": "jane.doe@example.com", "password": "Password1",
	})
	require.NoError(t, h.SignIn(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.User
	require.NoError(t, h.DB.First(&updated, user.ID).Error)
	require.Equal(t, "jane.doe", updated.Name)
}

func TestSignOutDeletesCarts(t *testing.T) {
	h := newHandler(t)

	pwHash, _ := hash.HashPassword("Password1")
	user := models.User{Name: "Jane", Email: "jane@example.com", PasswordHash: pwHash, Role: "user"}
	require.NoError(t, h.DB.Create(&user).Error)
	require.NoError(t, h.DB.Create(&models.Cart{
		UserID:        &user.ID,
		SessionCartID: "anon-token",
		Items:         []models.CartItem{{ProductID: 1, Name: "Mug", Price: "19.99", Qty: 1}},
		ItemsPrice:    "19.99", ShippingPrice: "10.00", TaxPrice: "2.00", TotalPrice: "31.99",
	}).Error)

	token, _, err := session.Issue(session.Claims{UserID: user.ID, Role: "user"}, testSecret)
	require.NoError(t, err)

	rec, c := doJSON(t, http.MethodPost, "/sign-out", nil,
		&http.Cookie{Name: session.CookieName, Value: token})
	require.NoError(t, h.SignOut(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	h.DB.Model(&models.Cart{}).Where("user_id = ?", user.ID).Count(&count)
	require.Zero(t, count)
}
