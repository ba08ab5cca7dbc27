// Package session issues and verifies the signed session token and owns
// the two cookies the storefront runs on: the session cookie binding a
// request to an authenticated user, and the sessionCartId cookie naming
// the anonymous cart of a browser that has not signed in yet.
package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	CookieName     = "session"
	CartCookieName = "sessionCartId"

	// Absolute session lifetime. The cookie is re-set on every
	// authenticated request but the expiry never slides past this.
	TokenLifetime = 30 * 24 * time.Hour

	CartCookieMaxAge = 365 * 24 * time.Hour
)

// Claims is the identity a session token carries.
type Claims struct {
	UserID uint
	Name   string
	Email  string
	Role   string
	Exp    time.Time
}

func Issue(claims Claims, secret []byte) (string, time.Time, error) {
	exp := time.Now().Add(TokenLifetime)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   claims.UserID,
		"name":  claims.Name,
		"email": claims.Email,
		"role":  claims.Role,
		"exp":   exp.Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func Parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid session claims")
	}
	sub, ok := mc["sub"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid subject claim")
	}
	expUnix, _ := mc["exp"].(float64)

	claims := &Claims{
		UserID: uint(sub),
		Exp:    time.Unix(int64(expUnix), 0),
	}
	claims.Name, _ = mc["name"].(string)
	claims.Email, _ = mc["email"].(string)
	claims.Role, _ = mc["role"].(string)
	return claims, nil
}

// NewCartID mints the opaque token of an anonymous cart.
func NewCartID() string {
	return uuid.NewString()
}

func CreateCookie(name, value, path string, expTime time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func DeleteCookie(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
