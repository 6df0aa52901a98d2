package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/rajivgeraev/bookswap-api/internal/inventory"
	"github.com/rajivgeraev/bookswap-api/internal/models"
)

// BookFilter описывает выборку книг каталога
type BookFilter struct {
	OwnerID        *uuid.UUID
	ExcludeOwnerID *uuid.UUID
	Status         string // статус склада, пусто - любой
	Limit          int
	Offset         int
}

// Tx - операции каталога внутри транзакции
type Tx interface {
	inventory.Tx

	BookByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	InsertBook(ctx context.Context, b *models.Book) error
	UpdateBook(ctx context.Context, b *models.Book) error
	DeleteBook(ctx context.Context, id uuid.UUID) error
	BookHasRequests(ctx context.Context, id uuid.UUID) (bool, error)
	InsertInventory(ctx context.Context, inv models.Inventory) error

	CategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	CategoryByName(ctx context.Context, name string) (*models.Category, error)
	InsertCategory(ctx context.Context, c *models.Category) error
	GenreByID(ctx context.Context, id uuid.UUID) (*models.Genre, error)
	GenreByName(ctx context.Context, name string) (*models.Genre, error)
	InsertGenre(ctx context.Context, g *models.Genre) error
}

// Store - хранилище каталога и списка желаемого
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	ListBooks(ctx context.Context, filter BookFilter) ([]models.Book, error)
	CategoryByName(ctx context.Context, name string) (*models.Category, error)
	GenreByName(ctx context.Context, name string) (*models.Genre, error)

	AddWishlist(ctx context.Context, item *models.WishlistItem) error
	RemoveWishlist(ctx context.Context, userID, bookID uuid.UUID) error
	ListWishlist(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error)
}
