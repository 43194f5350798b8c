package service

import (
	"context"
	"errors"
	"strings"

	"library_backend/db"
	"library_backend/logging"
	"library_backend/models"
)

const (
	minPublicationYear = 1000
	maxPublicationYear = 2100
)

// BookInput is what an admin submits for add/update. AvailableCopies is only
// range-checked on add; the stored counter is always derived.
type BookInput struct {
	Title           string
	Author          string
	ISBN            string
	Publisher       string
	PublicationYear int
	Category        string
	TotalCopies     int
	AvailableCopies *int
}

type CatalogService struct {
	repo *db.Repo
	log  logging.Logger
}

func NewCatalogService(repo *db.Repo, log logging.Logger) *CatalogService {
	return &CatalogService{repo: repo, log: log}
}

func (in *BookInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.Publisher = strings.TrimSpace(in.Publisher)
	in.Category = strings.TrimSpace(in.Category)
}

func (in BookInput) validate() *Error {
	switch {
	case in.Title == "":
		return invalid("Title cannot be empty")
	case in.Author == "":
		return invalid("Author cannot be empty")
	case in.ISBN == "":
		return invalid("ISBN cannot be empty")
	case in.TotalCopies < 1:
		return invalid("Total copies must be greater than 0")
	case in.AvailableCopies != nil && (*in.AvailableCopies < 0 || *in.AvailableCopies > in.TotalCopies):
		return invalid("Available copies must be between 0 and total copies")
	case in.PublicationYear < minPublicationYear || in.PublicationYear > maxPublicationYear:
		return invalid("Invalid publication year")
	}
	return nil
}

func (in BookInput) book() *models.Book {
	return &models.Book{
		Title:           in.Title,
		Author:          in.Author,
		ISBN:            in.ISBN,
		Publisher:       in.Publisher,
		PublicationYear: in.PublicationYear,
		Category:        in.Category,
		TotalCopies:     in.TotalCopies,
	}
}

// Add stores a new book. A new book has no loans, so every copy starts available.
func (s *CatalogService) Add(ctx context.Context, in BookInput) (*models.Book, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	dup, err := s.repo.ISBNExists(ctx, in.ISBN, 0)
	if err != nil {
		return nil, s.fail(ctx, "add book", err)
	}
	if dup {
		return nil, newErr(KindDuplicate, "ISBN already exists")
	}
	b := in.book()
	b.AvailableCopies = b.TotalCopies
	if err := s.repo.CreateBook(ctx, b); err != nil {
		return nil, s.translate(ctx, "add book", err)
	}
	s.log.Info(ctx, "book added", "book_id", b.ID, "isbn", b.ISBN, "copies", b.TotalCopies)
	return b, nil
}

// Update rewrites a book's metadata and total copies. The available counter is
// recomputed so that copies currently on loan stay accounted for.
func (s *CatalogService) Update(ctx context.Context, id uint, in BookInput) (*models.Book, error) {
	if id == 0 {
		return nil, invalid("Invalid book ID")
	}
	in.normalize()
	in.AvailableCopies = nil
	if err := in.validate(); err != nil {
		return nil, err
	}
	b := in.book()
	b.ID = id
	out, err := s.repo.UpdateBookDetails(ctx, b)
	if err != nil {
		return nil, s.translate(ctx, "update book", err)
	}
	return out, nil
}

// Delete removes a book that has no copies out.
func (s *CatalogService) Delete(ctx context.Context, id uint) error {
	if id == 0 {
		return invalid("Invalid book ID")
	}
	if err := s.repo.DeleteBook(ctx, id); err != nil {
		return s.translate(ctx, "delete book", err)
	}
	s.log.Info(ctx, "book deleted", "book_id", id)
	return nil
}

func (s *CatalogService) Get(ctx context.Context, id uint) (*models.Book, error) {
	if id == 0 {
		return nil, invalid("Invalid book ID")
	}
	b, err := s.repo.FindBookByID(ctx, id)
	if err != nil {
		return nil, s.translate(ctx, "get book", err)
	}
	return b, nil
}

func (s *CatalogService) List(ctx context.Context) ([]models.Book, error) {
	return s.list(ctx, "list books", db.BookFilter{})
}

// SearchByTitle matches a case-insensitive substring; an empty query lists everything.
func (s *CatalogService) SearchByTitle(ctx context.Context, q string) ([]models.Book, error) {
	return s.list(ctx, "search books", db.BookFilter{Title: q})
}

func (s *CatalogService) SearchByAuthor(ctx context.Context, q string) ([]models.Book, error) {
	return s.list(ctx, "search books", db.BookFilter{Author: q})
}

func (s *CatalogService) ByCategory(ctx context.Context, category string) ([]models.Book, error) {
	return s.list(ctx, "books by category", db.BookFilter{Category: category})
}

// Available lists books with at least one free copy.
func (s *CatalogService) Available(ctx context.Context) ([]models.Book, error) {
	return s.list(ctx, "available books", db.BookFilter{AvailableOnly: true})
}

func (s *CatalogService) Count(ctx context.Context) (int64, error) {
	n, err := s.repo.CountBooks(ctx)
	if err != nil {
		return 0, s.fail(ctx, "count books", err)
	}
	return n, nil
}

func (s *CatalogService) IsAvailable(ctx context.Context, id uint) (bool, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return b.AvailableCopies > 0, nil
}

func (s *CatalogService) list(ctx context.Context, op string, f db.BookFilter) ([]models.Book, error) {
	books, err := s.repo.ListBooks(ctx, f)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	return books, nil
}

func (s *CatalogService) translate(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, db.ErrBookNotFound):
		return newErr(KindNotFound, "Book not found")
	case errors.Is(err, db.ErrDuplicateISBN):
		return newErr(KindDuplicate, "ISBN already exists")
	case errors.Is(err, db.ErrCopiesOut):
		return newErr(KindBusy, "Cannot delete book. Some copies are currently issued")
	case errors.Is(err, db.ErrTotalBelowOut):
		return invalid("Total copies cannot be less than copies currently issued")
	}
	return s.fail(ctx, op, err)
}

func (s *CatalogService) fail(ctx context.Context, op string, err error) error {
	s.log.Error(ctx, "catalog store error", "op", op, "err", err)
	return storeErr(err)
}
