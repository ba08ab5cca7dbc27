package cart

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/pricing"
)

type CartHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Secret   []byte
}

func fail(c echo.Context, err error) error {
	status, res := apperr.ToResult(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("unhandled_error", "error", err)
	}
	return c.JSON(status, res)
}

func (h *CartHandler) GetCart(c echo.Context) error {
	id, err := resolveIdentity(c, h.Secret)
	if err != nil {
		return fail(c, err)
	}

	cart, err := findCart(h.DB, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, apperr.OK("", cart))
}

func (h *CartHandler) AddItem(c echo.Context) error {
	id, err := resolveIdentity(c, h.Secret)
	if err != nil {
		return fail(c, err)
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Qty       uint `json:"qty"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, apperr.New(apperr.KindValidation, "invalid body"))
	}
	if req.Qty < 1 {
		req.Qty = 1
	}

	var product models.Product
	if err := h.DB.First(&product, req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, apperr.New(apperr.KindNotFound, "product not found"))
		}
		return fail(c, apperr.Wrap(apperr.KindInternal, "cannot load product", err))
	}

	cart, err := h.addToCart(id, product, req.Qty)
	if err != nil {
		return fail(c, err)
	}

	h.publish(c, map[string]any{
		"type":          "cart_item_added",
		"sessionCartID": id.SessionCartID,
		"productID":     product.ID,
		"qty":           req.Qty,
	})
	return c.JSON(http.StatusOK, apperr.OK("item added to cart", cart))
}

// addToCart creates the cart on first add, otherwise merges the item
// into the existing line list and recomputes every price field.
func (h *CartHandler) addToCart(id identity, product models.Product, qty uint) (*models.Cart, error) {
	_, err := findCart(h.DB, id)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return h.createCart(id, product, qty)
	}
	if err != nil {
		return nil, err
	}

	return h.mutate(id, func(cart *models.Cart) error {
		merged := false
		for i := range cart.Items {
			if cart.Items[i].ProductID == product.ID {
				cart.Items[i].Qty += qty
				if cart.Items[i].Qty > product.Stock {
					return apperr.New(apperr.KindConflict, "out of stock")
				}
				merged = true
				break
			}
		}
		if !merged {
			if qty > product.Stock {
				return apperr.New(apperr.KindConflict, "out of stock")
			}
			cart.Items = append(cart.Items, newLine(product, qty))
		}
		return repriceCart(cart)
	})
}

func (h *CartHandler) createCart(id identity, product models.Product, qty uint) (*models.Cart, error) {
	if qty > product.Stock {
		return nil, apperr.New(apperr.KindConflict, "out of stock")
	}

	cart := models.Cart{
		UserID:        id.UserID,
		SessionCartID: id.SessionCartID,
		Items:         []models.CartItem{newLine(product, qty)},
	}
	if err := repriceCart(&cart); err != nil {
		return nil, err
	}
	if err := h.DB.Create(&cart).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "cannot create cart", err)
	}
	return &cart, nil
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	id, err := resolveIdentity(c, h.Secret)
	if err != nil {
		return fail(c, err)
	}

	productID, err := parseUintParam(c, "productID")
	if err != nil {
		return fail(c, apperr.New(apperr.KindValidation, "invalid product id"))
	}

	cart, err := h.mutate(id, func(cart *models.Cart) error {
		idx := -1
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return apperr.New(apperr.KindNotFound, "item not found in cart")
		}

		cart.Items[idx].Qty--
		if cart.Items[idx].Qty == 0 {
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		}
		if len(cart.Items) == 0 {
			return nil
		}
		return repriceCart(cart)
	})
	if err != nil {
		return fail(c, err)
	}

	h.publish(c, map[string]any{
		"type":          "cart_item_removed",
		"sessionCartID": id.SessionCartID,
		"productID":     productID,
	})
	if cart == nil {
		return c.JSON(http.StatusOK, apperr.OK("cart is now empty", nil))
	}
	return c.JSON(http.StatusOK, apperr.OK("item removed from cart", cart))
}

// PlaceOrder turns the signed-in user's cart into an order inside one
// transaction: stock is re-checked and decremented per line, the cart's
// price snapshot is copied onto the order, and the cart is deleted.
func (h *CartHandler) PlaceOrder(c echo.Context) error {
	id, err := resolveIdentity(c, h.Secret)
	if err != nil {
		return fail(c, err)
	}
	if id.UserID == nil {
		return fail(c, apperr.New(apperr.KindUnauthorized, "sign in to place an order"))
	}

	var user models.User
	if err := h.DB.First(&user, *id.UserID).Error; err != nil {
		return fail(c, apperr.Wrap(apperr.KindInternal, "cannot load user", err))
	}
	if user.Address == nil {
		return fail(c, apperr.New(apperr.KindValidation, "shipping address is required"))
	}
	if user.PaymentMethod == "" {
		return fail(c, apperr.New(apperr.KindValidation, "payment method is required"))
	}

	var order models.Order
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := tx.Where("user_id = ?", *id.UserID).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindNotFound, "no cart found")
			}
			return apperr.Wrap(apperr.KindInternal, "cannot load cart", err)
		}
		if len(cart.Items) == 0 {
			return apperr.New(apperr.KindValidation, "cart is empty")
		}

		for _, it := range cart.Items {
			var p models.Product
			if err := tx.First(&p, it.ProductID).Error; err != nil {
				return apperr.New(apperr.KindNotFound, "product not found")
			}
			// Conditional decrement: a concurrent order that drained the
			// stock first makes this match zero rows instead of overselling.
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", it.ProductID, it.Qty).
				Update("stock", gorm.Expr("stock - ?", it.Qty))
			if res.Error != nil {
				return apperr.Wrap(apperr.KindInternal, "cannot update stock", res.Error)
			}
			if res.RowsAffected == 0 {
				return apperr.New(apperr.KindConflict, "out of stock")
			}
		}

		order = models.Order{
			UserID:        *id.UserID,
			ItemsPrice:    cart.ItemsPrice,
			ShippingPrice: cart.ShippingPrice,
			TaxPrice:      cart.TaxPrice,
			TotalPrice:    cart.TotalPrice,
			Address:       user.Address,
			PaymentMethod: user.PaymentMethod,
			Status:        "new",
			CreatedAt:     time.Now(),
		}
		if err := tx.Create(&order).Error; err != nil {
			return apperr.Wrap(apperr.KindInternal, "cannot create order", err)
		}

		for _, it := range cart.Items {
			oi := models.OrderItem{
				OrderID:   order.ID,
				ProductID: it.ProductID,
				Name:      it.Name,
				Price:     it.Price,
				Qty:       it.Qty,
			}
			if err := tx.Create(&oi).Error; err != nil {
				return apperr.Wrap(apperr.KindInternal, "cannot create order item", err)
			}
		}

		if err := tx.Delete(&cart).Error; err != nil {
			return apperr.Wrap(apperr.KindInternal, "cannot clear cart", err)
		}
		return nil
	})
	if txErr != nil {
		return fail(c, txErr)
	}

	h.publish(c, map[string]any{
		"type":          "order_created",
		"sessionCartID": id.SessionCartID,
		"userID":        *id.UserID,
		"orderID":       order.ID,
	})
	return c.JSON(http.StatusOK, apperr.OK("order placed", order))
}

func newLine(product models.Product, qty uint) models.CartItem {
	return models.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Slug:      product.Slug,
		Image:     product.Image,
		Price:     product.Price,
		Qty:       qty,
	}
}

func repriceCart(cart *models.Cart) error {
	prices, err := pricing.Calc(cart.Items)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "cannot price cart", err)
	}
	cart.ItemsPrice = prices.ItemsPrice
	cart.ShippingPrice = prices.ShippingPrice
	cart.TaxPrice = prices.TaxPrice
	cart.TotalPrice = prices.TotalPrice
	return nil
}
