package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Состояния книги в складском учёте
const (
	InventoryAvailable   = "available"
	InventoryRequested   = "requested"
	InventoryExchanged   = "exchanged"
	InventoryUnavailable = "unavailable"
)

// Допустимые состояния экземпляра книги
var BookConditions = map[string]bool{
	"new": true, "like_new": true, "good": true, "fair": true, "poor": true,
}

// Category представляет категорию книги
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Genre представляет жанр книги
type Genre struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// OthersName - имя категории и жанра, за которыми скрывается пользовательское значение
const OthersName = "Others"

// Book представляет книгу, выставленную владельцем на обмен
type Book struct {
	ID          uuid.UUID        `json:"id"`
	OwnerID     uuid.UUID        `json:"owner_id"`
	Title       string           `json:"title"`
	Author      string           `json:"author"`
	Slug        string           `json:"slug"`
	Description string           `json:"description"`
	ISBN        string           `json:"isbn"`
	CategoryID  *uuid.UUID       `json:"category_id,omitempty"`
	GenreID     *uuid.UUID       `json:"genre_id,omitempty"`
	Language    string           `json:"language"`
	Condition   string           `json:"condition"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Location    string           `json:"location"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	// Дополнительные поля для API
	Inventory *Inventory `json:"inventory,omitempty"`
}

// Inventory - состояние книги в складском учёте (один к одному с Book)
type Inventory struct {
	BookID    uuid.UUID  `json:"book_id"`
	Status    string     `json:"status"`
	LockedBy  *uuid.UUID `json:"locked_by,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// WishlistItem - книга в списке желаемого пользователя
type WishlistItem struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	BookID    uuid.UUID `json:"book_id"`
	CreatedAt time.Time `json:"created_at"`

	Book *Book `json:"book,omitempty"`
}
