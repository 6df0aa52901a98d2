// Package catalog ведёт книги, выставленные на обмен, их классификацию и
// список желаемого. Книгу можно менять и удалять, только пока она свободна.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rajivgeraev/bookswap-api/internal/apperr"
	"github.com/rajivgeraev/bookswap-api/internal/inventory"
	"github.com/rajivgeraev/bookswap-api/internal/models"
)

var (
	ErrTitleRequired     = apperr.New(apperr.KindValidation, "title is required")
	ErrAuthorRequired    = apperr.New(apperr.KindValidation, "author is required")
	ErrBadCondition      = apperr.New(apperr.KindValidation, "unknown book condition")
	ErrNegativePrice     = apperr.New(apperr.KindValidation, "price cannot be negative")
	ErrCustomCategory    = apperr.New(apperr.KindValidation, "custom category is required for Others")
	ErrCustomGenre       = apperr.New(apperr.KindValidation, "custom genre is required for Others")
	ErrNotOwner          = apperr.New(apperr.KindForbidden, "you do not own this book")
	ErrBookLocked        = apperr.New(apperr.KindUnavailable, "book is involved in an exchange and cannot be changed")
	ErrBookHasHistory    = apperr.New(apperr.KindState, "book has exchange history; withdraw it instead")
	ErrOwnBookWishlist   = apperr.New(apperr.KindValidation, "you cannot wishlist your own book")
	ErrAlreadyWishlisted = apperr.New(apperr.KindState, "book is already in your wishlist")
)

// BookInput - данные формы книги
type BookInput struct {
	Title          string           `json:"title" validate:"required,max=255"`
	Author         string           `json:"author" validate:"required,max=255"`
	Description    string           `json:"description"`
	ISBN           string           `json:"isbn" validate:"omitempty,max=13"`
	CategoryID     *uuid.UUID       `json:"category_id"`
	GenreID        *uuid.UUID       `json:"genre_id"`
	CustomCategory string           `json:"custom_category" validate:"max=100"`
	CustomGenre    string           `json:"custom_genre" validate:"max=100"`
	Language       string           `json:"language" validate:"max=50"`
	Condition      string           `json:"condition" validate:"required"`
	Price          *decimal.Decimal `json:"price"`
	Location       string           `json:"location" validate:"max=100"`
}

// Service - сервис каталога
type Service struct {
	store  Store
	ledger *inventory.Ledger
	logger *slog.Logger
	now    func() time.Time

	// идентичности "Others", определённые один раз при старте
	othersCategory uuid.UUID
	othersGenre    uuid.UUID
}

// NewService создает новый экземпляр Service и разрешает категорию и жанр "Others"
func NewService(ctx context.Context, store Store, logger *slog.Logger, now func() time.Time) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}

	cat, err := store.CategoryByName(ctx, models.OthersName)
	if err != nil {
		return nil, fmt.Errorf("категория %q не найдена: %w", models.OthersName, err)
	}
	gen, err := store.GenreByName(ctx, models.OthersName)
	if err != nil {
		return nil, fmt.Errorf("жанр %q не найден: %w", models.OthersName, err)
	}

	return &Service{
		store:          store,
		ledger:         inventory.NewLedger(now),
		logger:         logger,
		now:            now,
		othersCategory: cat.ID,
		othersGenre:    gen.ID,
	}, nil
}

// CreateBook добавляет книгу и создаёт для неё свободную запись склада
func (s *Service) CreateBook(ctx context.Context, ownerID uuid.UUID, in BookInput) (*models.Book, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	var book *models.Book
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now().UTC()
		b := &models.Book{
			ID:        uuid.New(),
			OwnerID:   ownerID,
			CreatedAt: now,
		}
		if err := s.fill(ctx, tx, b, in); err != nil {
			return err
		}

		slug, err := uniqueSlug(ctx, tx, in.Title)
		if err != nil {
			return err
		}
		b.Slug = slug

		if err := tx.InsertBook(ctx, b); err != nil {
			return err
		}
		inv := models.Inventory{BookID: b.ID, Status: models.InventoryAvailable, UpdatedAt: now}
		if err := tx.InsertInventory(ctx, inv); err != nil {
			return err
		}
		b.Inventory = &inv
		book = b
		return nil
	})
	if err != nil {
		s.logFailure("create_book", uuid.Nil, err)
		return nil, err
	}
	return book, nil
}

// UpdateBook изменяет книгу владельца, пока она свободна
func (s *Service) UpdateBook(ctx context.Context, ownerID, bookID uuid.UUID, in BookInput) (*models.Book, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	var book *models.Book
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, inv, err := s.lockOwnBook(ctx, tx, ownerID, bookID)
		if err != nil {
			return err
		}
		if err := s.fill(ctx, tx, b, in); err != nil {
			return err
		}
		if err := tx.UpdateBook(ctx, b); err != nil {
			return err
		}
		b.Inventory = inv
		book = b
		return nil
	})
	if err != nil {
		s.logFailure("update_book", bookID, err)
		return nil, err
	}
	return book, nil
}

// DeleteBook удаляет свободную книгу без истории обменов
func (s *Service) DeleteBook(ctx context.Context, ownerID, bookID uuid.UUID) error {
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, _, err := s.lockOwnBook(ctx, tx, ownerID, bookID); err != nil {
			return err
		}
		used, err := tx.BookHasRequests(ctx, bookID)
		if err != nil {
			return err
		}
		if used {
			return ErrBookHasHistory
		}
		return tx.DeleteBook(ctx, bookID)
	})
	if err != nil {
		s.logFailure("delete_book", bookID, err)
	}
	return err
}

// SetAvailability снимает книгу с обмена или возвращает её
func (s *Service) SetAvailability(ctx context.Context, ownerID, bookID uuid.UUID, available bool) (*models.Book, error) {
	var book *models.Book
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.BookByID(ctx, bookID)
		if err != nil {
			return err
		}
		if b.OwnerID != ownerID {
			return ErrNotOwner
		}
		if available {
			err = s.ledger.Restore(ctx, tx, bookID)
		} else {
			err = s.ledger.Withdraw(ctx, tx, bookID)
		}
		if err != nil {
			return err
		}
		book = b
		return nil
	})
	if err != nil {
		s.logFailure("set_availability", bookID, err)
		return nil, err
	}
	return s.store.GetBook(ctx, book.ID)
}

// GetBook возвращает книгу вместе с состоянием склада
func (s *Service) GetBook(ctx context.Context, bookID uuid.UUID) (*models.Book, error) {
	return s.store.GetBook(ctx, bookID)
}

// MyBooks возвращает книги владельца
func (s *Service) MyBooks(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Book, error) {
	return s.store.ListBooks(ctx, BookFilter{OwnerID: &ownerID, Limit: clampLimit(limit), Offset: offset})
}

// ExploreBooks возвращает свободные книги других пользователей
func (s *Service) ExploreBooks(ctx context.Context, viewerID uuid.UUID, limit, offset int) ([]models.Book, error) {
	return s.store.ListBooks(ctx, BookFilter{
		ExcludeOwnerID: &viewerID,
		Status:         models.InventoryAvailable,
		Limit:          clampLimit(limit),
		Offset:         offset,
	})
}

// AddToWishlist добавляет чужую книгу в список желаемого
func (s *Service) AddToWishlist(ctx context.Context, userID, bookID uuid.UUID) (*models.WishlistItem, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.OwnerID == userID {
		return nil, ErrOwnBookWishlist
	}

	item := &models.WishlistItem{
		ID:        uuid.New(),
		UserID:    userID,
		BookID:    bookID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AddWishlist(ctx, item); err != nil {
		s.logFailure("add_wishlist", bookID, err)
		return nil, err
	}
	item.Book = book
	return item, nil
}

// RemoveFromWishlist удаляет книгу из списка желаемого
func (s *Service) RemoveFromWishlist(ctx context.Context, userID, bookID uuid.UUID) error {
	return s.store.RemoveWishlist(ctx, userID, bookID)
}

// Wishlist возвращает список желаемого пользователя
func (s *Service) Wishlist(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	return s.store.ListWishlist(ctx, userID)
}

// lockOwnBook блокирует строку склада и проверяет, что книга свободна и принадлежит владельцу
func (s *Service) lockOwnBook(ctx context.Context, tx Tx, ownerID, bookID uuid.UUID) (*models.Book, *models.Inventory, error) {
	b, err := tx.BookByID(ctx, bookID)
	if err != nil {
		return nil, nil, err
	}
	if b.OwnerID != ownerID {
		return nil, nil, ErrNotOwner
	}
	rows, err := tx.InventoryForUpdate(ctx, []uuid.UUID{bookID})
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, apperr.ErrNotFound
	}
	inv := rows[0]
	if inv.Status != models.InventoryAvailable || inv.LockedBy != nil {
		return nil, nil, ErrBookLocked
	}
	return b, &inv, nil
}

// fill переносит поля формы в книгу и разрешает классификацию
func (s *Service) fill(ctx context.Context, tx Tx, b *models.Book, in BookInput) error {
	categoryID, err := s.resolveCategory(ctx, tx, in.CategoryID, in.CustomCategory)
	if err != nil {
		return err
	}
	genreID, err := s.resolveGenre(ctx, tx, in.GenreID, in.CustomGenre)
	if err != nil {
		return err
	}

	b.Title = in.Title
	b.Author = in.Author
	b.Description = in.Description
	b.ISBN = in.ISBN
	b.Language = in.Language
	b.Condition = in.Condition
	b.Location = in.Location
	b.CategoryID = categoryID
	b.GenreID = genreID
	b.Price = nil
	if in.Price != nil {
		p := *in.Price
		b.Price = &p
	}
	b.UpdatedAt = s.now().UTC()
	return nil
}

// resolveCategory подменяет "Others" пользовательской категорией, создавая её при необходимости
func (s *Service) resolveCategory(ctx context.Context, tx Tx, id *uuid.UUID, custom string) (*uuid.UUID, error) {
	if id == nil {
		return nil, nil
	}
	if *id != s.othersCategory {
		c, err := tx.CategoryByID(ctx, *id)
		if err != nil {
			return nil, err
		}
		return &c.ID, nil
	}

	name := strings.TrimSpace(custom)
	if name == "" {
		return nil, ErrCustomCategory
	}
	c, err := tx.CategoryByName(ctx, name)
	if errors.Is(err, apperr.ErrNotFound) {
		c = &models.Category{ID: uuid.New(), Name: name}
		err = tx.InsertCategory(ctx, c)
	}
	if err != nil {
		return nil, err
	}
	return &c.ID, nil
}

// resolveGenre подменяет "Others" пользовательским жанром, создавая его при необходимости
func (s *Service) resolveGenre(ctx context.Context, tx Tx, id *uuid.UUID, custom string) (*uuid.UUID, error) {
	if id == nil {
		return nil, nil
	}
	if *id != s.othersGenre {
		g, err := tx.GenreByID(ctx, *id)
		if err != nil {
			return nil, err
		}
		return &g.ID, nil
	}

	name := strings.TrimSpace(custom)
	if name == "" {
		return nil, ErrCustomGenre
	}
	g, err := tx.GenreByName(ctx, name)
	if errors.Is(err, apperr.ErrNotFound) {
		g = &models.Genre{ID: uuid.New(), Name: name}
		err = tx.InsertGenre(ctx, g)
	}
	if err != nil {
		return nil, err
	}
	return &g.ID, nil
}

func (s *Service) logFailure(op string, id uuid.UUID, err error) {
	if apperr.KindOf(err) == apperr.KindStorage {
		s.logger.Error("ошибка хранилища каталога", "op", op, "id", id, "err", err)
		return
	}
	s.logger.Debug("операция каталога отклонена", "op", op, "id", id, "reason", apperr.MessageOf(err))
}

func validateInput(in *BookInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	if in.Title == "" {
		return ErrTitleRequired
	}
	if in.Author == "" {
		return ErrAuthorRequired
	}
	if !models.BookConditions[in.Condition] {
		return ErrBadCondition
	}
	if in.Price != nil && in.Price.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}

// uniqueSlug подбирает свободный slug: title, title-1, title-2, ...
func uniqueSlug(ctx context.Context, tx Tx, title string) (string, error) {
	base := Slugify(title)
	if base == "" {
		base = "book"
	}
	slug := base
	for i := 1; ; i++ {
		exists, err := tx.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

// Slugify приводит заголовок к виду, пригодному для URL
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
