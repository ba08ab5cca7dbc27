package models

import (
	"time"
)

type Product struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name        string `gorm:"not null"                  json:"name"`
	Slug        string `gorm:"uniqueIndex;not null"      json:"slug"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Price       string `gorm:"not null"                  json:"price"`
	Stock       uint   `json:"stock"`
}

type User struct {
	ID            uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string           `gorm:"not null"                 json:"name"`
	Email         string           `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash  string           `gorm:"not null"                 json:"-"`
	Role          string           `gorm:"not null;default:user"    json:"role"`
	Address       *ShippingAddress `gorm:"serializer:json"          json:"address,omitempty"`
	PaymentMethod string           `json:"payment_method,omitempty"`
}

type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// CartItem is one line of a cart, unique by ProductID within the cart.
// Price is a fixed-2-decimal string, never a float.
type CartItem struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Image     string `json:"image"`
	Price     string `json:"price"`
	Qty       uint   `json:"qty"`
}

// Cart belongs either to a user or to an anonymous session. Once UserID
// is set, lookup goes by it and SessionCartID is only a record of how
// the cart was created. Version guards concurrent read-modify-write.
type Cart struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        *uint      `gorm:"index"                    json:"user_id,omitempty"`
	SessionCartID string     `gorm:"index;not null"           json:"session_cart_id"`
	Items         []CartItem `gorm:"serializer:json"          json:"items"`
	ItemsPrice    string     `gorm:"not null"                 json:"items_price"`
	ShippingPrice string     `gorm:"not null"                 json:"shipping_price"`
	TaxPrice      string     `gorm:"not null"                 json:"tax_price"`
	TotalPrice    string     `gorm:"not null"                 json:"total_price"`
	Version       uint       `gorm:"not null;default:0"       json:"-"`
}

type Order struct {
	ID            uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint             `gorm:"index;not null"           json:"user_id"`
	ItemsPrice    string           `gorm:"not null"                 json:"items_price"`
	ShippingPrice string           `gorm:"not null"                 json:"shipping_price"`
	TaxPrice      string           `gorm:"not null"                 json:"tax_price"`
	TotalPrice    string           `gorm:"not null"                 json:"total_price"`
	Address       *ShippingAddress `gorm:"serializer:json"          json:"address,omitempty"`
	PaymentMethod string           `json:"payment_method"`
	Status        string           `gorm:"not null"                 json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
}

type OrderItem struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   uint   `gorm:"index;not null"           json:"order_id"`
	ProductID uint   `gorm:"not null"                 json:"product_id"`
	Name      string `gorm:"not null"                 json:"name"`
	Price     string `gorm:"not null"                 json:"price"`
	Qty       uint   `gorm:"not null"                 json:"qty"`
}
