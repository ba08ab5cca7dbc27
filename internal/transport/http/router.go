package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/handlers"
	"github.com/Skotchmaster/storefront/internal/handlers/auth"
	"github.com/Skotchmaster/storefront/internal/handlers/cart"
	"github.com/Skotchmaster/storefront/internal/session"
)

type Deps struct {
	AuthHandler    *auth.AuthHandler
	CartHandler    *cart.CartHandler
	ProductHandler *handlers.ProductHandler
	UserHandler    *handlers.UserHandler
	SearchHandler  *handlers.SearchHandler
	Secret         []byte
	Secure         bool
}

func Register(e *echo.Echo, d *Deps) {
	e.Use(EnsureSessionCart(d.Secure), RefreshSession(d.Secret, d.Secure))

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/sign-up", d.AuthHandler.SignUp)
	v1.POST("/sign-in", d.AuthHandler.SignIn)
	v1.POST("/sign-out", d.AuthHandler.SignOut)

	v1.GET("/search", d.SearchHandler.Search)

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.GET("/slug/:slug", d.ProductHandler.GetProductBySlug)

	admin := v1.Group("/admin", RequireAdmin(d.Secret))
	admin.POST("/products", d.ProductHandler.CreateProduct)
	admin.PATCH("/products/:id", d.ProductHandler.PatchProduct)
	admin.DELETE("/products/:id", d.ProductHandler.DeleteProduct)

	cartGroup := v1.Group("/cart")
	cartGroup.GET("", d.CartHandler.GetCart)
	cartGroup.POST("", d.CartHandler.AddItem)
	cartGroup.DELETE("/items/:productID", d.CartHandler.RemoveItem)
	cartGroup.POST("/order", d.CartHandler.PlaceOrder)

	me := v1.Group("/me")
	me.PUT("/address", d.UserHandler.UpdateAddress)
	me.PUT("/payment-method", d.UserHandler.UpdatePaymentMethod)
}

// EnsureSessionCart issues the anonymous cart token on the first
// request lacking it and makes the cookie visible to this request's
// handlers, not only the next one.
func EnsureSessionCart(secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, err := c.Cookie(session.CartCookieName); err == nil {
				return next(c)
			}

			ck := session.CreateCookie(
				session.CartCookieName,
				session.NewCartID(),
				"/",
				time.Now().Add(session.CartCookieMaxAge),
				secure,
			)
			c.SetCookie(ck)
			c.Request().AddCookie(ck)
			return next(c)
		}
	}
}

// RefreshSession re-sets a valid session cookie on every request. The
// expiry comes from the token itself, so the lifetime stays absolute.
func RefreshSession(secret []byte, secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ck, err := c.Cookie(session.CookieName)
			if err != nil || ck.Value == "" {
				return next(c)
			}

			claims, err := session.Parse(ck.Value, secret)
			if err != nil {
				c.SetCookie(session.DeleteCookie(session.CookieName, "/"))
				return next(c)
			}

			c.SetCookie(session.CreateCookie(session.CookieName, ck.Value, "/", claims.Exp, secure))
			return next(c)
		}
	}
}

func RequireAdmin(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ck, err := c.Cookie(session.CookieName)
			if err != nil || ck.Value == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "sign in required")
			}
			claims, err := session.Parse(ck.Value, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "sign in required")
			}
			if claims.Role != "admin" {
				return echo.NewHTTPError(http.StatusForbidden, "admin only")
			}
			return next(c)
		}
	}
}
