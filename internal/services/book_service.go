package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"biblio/internal/models"
	"biblio/internal/repositories"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page is one slice of a paginated listing.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

type CreateBookInput struct {
	Title     string
	Author    string
	ISBN      *string
	Publisher *string
	Year      *int
	Category  *string
}

// UpdateBookInput patches the non-nil fields. Availability is owned by the
// reservation lifecycle and cannot be patched.
type UpdateBookInput struct {
	Title     *string
	Author    *string
	ISBN      *string
	Publisher *string
	Year      *int
	Category  *string
}

// BookService manages the catalogue and owns each book's availability flag.
//
// MarkReserved and MarkAvailable take an optional transaction so the
// reservation lifecycle can couple them with its own writes.
type BookService interface {
	Create(ctx context.Context, in CreateBookInput) (*models.Book, error)
	FindAll(ctx context.Context, query string, page, limit int) (Page[models.Book], error)
	FindAvailable(ctx context.Context) ([]models.Book, error)
	FindOne(ctx context.Context, id uuid.UUID) (*models.Book, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateBookInput) (*models.Book, error)
	Remove(ctx context.Context, id uuid.UUID) error

	MarkReserved(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Book, error)
	MarkAvailable(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Book, error)
}

type bookService struct {
	db       *gorm.DB
	bookRepo repositories.BookRepository
	logger   *zap.Logger
}

func NewBookService(db *gorm.DB, bookRepo repositories.BookRepository, logger *zap.Logger) BookService {
	return &bookService{db: db, bookRepo: bookRepo, logger: logger}
}

func (s *bookService) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		tx = s.db
	}
	return tx.WithContext(ctx)
}

// Create registers a book. New books are always available.
func (s *bookService) Create(ctx context.Context, in CreateBookInput) (*models.Book, error) {
	book := &models.Book{
		Title:        strings.TrimSpace(in.Title),
		Author:       strings.TrimSpace(in.Author),
		ISBN:         blankToNil(in.ISBN),
		Publisher:    blankToNil(in.Publisher),
		Year:         in.Year,
		Category:     blankToNil(in.Category),
		Availability: models.BookAvailable,
	}
	if err := validateBook(book); err != nil {
		return nil, err
	}

	db := s.conn(ctx, nil)
	if book.ISBN != nil {
		if err := s.ensureISBNFree(db, *book.ISBN, uuid.Nil); err != nil {
			return nil, err
		}
	}
	if err := s.bookRepo.Create(db, book); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateISBN
		}
		s.logger.Error("create book: insert failed", zap.Error(err))
		return nil, wrapStorage("create book", err)
	}
	s.logger.Info("create book: created", zap.String("book_id", book.ID.String()), zap.String("title", book.Title))
	return book, nil
}

// FindAll searches title, author and ISBN.
func (s *bookService) FindAll(ctx context.Context, query string, page, limit int) (Page[models.Book], error) {
	page, limit = normalizePage(page, limit)
	books, total, err := s.bookRepo.List(s.conn(ctx, nil), repositories.BookFilter{
		Query:  query,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return Page[models.Book]{}, wrapStorage("list books", err)
	}
	return Page[models.Book]{Items: books, Total: total, Page: page, Limit: limit}, nil
}

// FindAvailable lists the books that can be reserved right now.
func (s *bookService) FindAvailable(ctx context.Context) ([]models.Book, error) {
	books, err := s.bookRepo.ListByAvailability(s.conn(ctx, nil), models.BookAvailable)
	if err != nil {
		return nil, wrapStorage("list available books", err)
	}
	return books, nil
}

func (s *bookService) FindOne(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	return s.get(s.conn(ctx, nil), id)
}

func (s *bookService) Update(ctx context.Context, id uuid.UUID, in UpdateBookInput) (*models.Book, error) {
	db := s.conn(ctx, nil)
	book, err := s.get(db, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		book.Title = strings.TrimSpace(*in.Title)
	}
	if in.Author != nil {
		book.Author = strings.TrimSpace(*in.Author)
	}
	if in.ISBN != nil {
		book.ISBN = blankToNil(in.ISBN)
	}
	if in.Publisher != nil {
		book.Publisher = blankToNil(in.Publisher)
	}
	if in.Year != nil {
		book.Year = in.Year
	}
	if in.Category != nil {
		book.Category = blankToNil(in.Category)
	}
	if err := validateBook(book); err != nil {
		return nil, err
	}
	if book.ISBN != nil {
		if err := s.ensureISBNFree(db, *book.ISBN, book.ID); err != nil {
			return nil, err
		}
	}

	if err := s.bookRepo.Save(db, book); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateISBN
		}
		return nil, wrapStorage("update book", err)
	}
	return book, nil
}

// Remove deletes a book. A reserved book cannot be deleted; the delete is
// conditional on availability so a concurrent reservation cannot slip in
// between the check and the delete.
func (s *bookService) Remove(ctx context.Context, id uuid.UUID) error {
	db := s.conn(ctx, nil)
	deleted, err := s.bookRepo.DeleteIfAvailable(db, id)
	if err != nil {
		return wrapStorage("delete book", err)
	}
	if deleted {
		s.logger.Info("remove book: deleted", zap.String("book_id", id.String()))
		return nil
	}
	if _, err := s.get(db, id); err != nil {
		return err
	}
	s.logger.Warn("remove book: book is reserved", zap.String("book_id", id.String()))
	return ErrBookUnderHold
}

// MarkReserved flips an available book to reserved with a single
// conditional update, so two concurrent calls cannot both succeed.
func (s *bookService) MarkReserved(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Book, error) {
	db := s.conn(ctx, tx)
	changed, err := s.bookRepo.SetAvailabilityIf(db, id, models.BookAvailable, models.BookReserved)
	if err != nil {
		return nil, wrapStorage("mark book reserved", err)
	}

	book, err := s.get(db, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		s.logger.Warn("mark reserved: book already reserved", zap.String("book_id", id.String()))
		return nil, ErrBookAlreadyReserved
	}
	return book, nil
}

// MarkAvailable releases a book. Releasing an available book is a no-op.
func (s *bookService) MarkAvailable(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Book, error) {
	db := s.conn(ctx, tx)
	book, err := s.get(db, id)
	if err != nil {
		return nil, err
	}
	if book.Availability == models.BookAvailable {
		return book, nil
	}
	if err := s.bookRepo.SetAvailability(db, id, models.BookAvailable); err != nil {
		return nil, wrapStorage("mark book available", err)
	}
	book.Availability = models.BookAvailable
	return book, nil
}

func (s *bookService) get(db *gorm.DB, id uuid.UUID) (*models.Book, error) {
	book, err := s.bookRepo.GetByID(db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, wrapStorage("get book", err)
	}
	return book, nil
}

func (s *bookService) ensureISBNFree(db *gorm.DB, isbn string, self uuid.UUID) error {
	existing, err := s.bookRepo.GetByISBN(db, isbn)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return wrapStorage("lookup isbn", err)
	}
	if existing.ID != self {
		return ErrDuplicateISBN
	}
	return nil
}

func validateBook(b *models.Book) error {
	if b.Title == "" || b.Author == "" || len(b.Title) > 200 {
		return ErrInvalidBook
	}
	if b.Year != nil && (*b.Year < 1000 || *b.Year > 2100) {
		return ErrInvalidYear
	}
	return nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
