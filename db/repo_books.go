// db/repo_books.go
package db

import (
	"context"
	"errors"
	"strings"

	"library_backend/models"

	"gorm.io/gorm"
)

// BookFilter narrows ListBooks. Empty fields match everything.
type BookFilter struct {
	Title         string // 子串，不区分大小写
	Author        string // 子串，不区分大小写
	Category      string // 精确匹配，不区分大小写
	AvailableOnly bool
}

func (r *Repo) CreateBook(ctx context.Context, b *models.Book) error {
	err := r.DB.WithContext(ctx).Create(b).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateISBN
	}
	return err
}

func (r *Repo) FindBookByID(ctx context.Context, id uint) (*models.Book, error) {
	var b models.Book
	if err := r.DB.WithContext(ctx).First(&b, "book_id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrBookNotFound)
	}
	return &b, nil
}

// LockBook loads a live book row for update.
func (r *Repo) LockBook(ctx context.Context, id uint) (*models.Book, error) {
	var b models.Book
	if err := r.forUpdate(ctx).First(&b, "book_id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrBookNotFound)
	}
	return &b, nil
}

// ISBNExists reports whether a live book other than exceptID carries isbn.
func (r *Repo) ISBNExists(ctx context.Context, isbn string, exceptID uint) (bool, error) {
	var n int64
	q := r.DB.WithContext(ctx).Model(&models.Book{}).Where("isbn = ?", isbn)
	if exceptID != 0 {
		q = q.Where("book_id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

// ListBooks 按书名升序
func (r *Repo) ListBooks(ctx context.Context, f BookFilter) ([]models.Book, error) {
	q := r.DB.WithContext(ctx).Model(&models.Book{})
	if s := strings.TrimSpace(f.Title); s != "" {
		q = q.Where("LOWER(title) LIKE ?", likePattern(s))
	}
	if s := strings.TrimSpace(f.Author); s != "" {
		q = q.Where("LOWER(author) LIKE ?", likePattern(s))
	}
	if s := strings.TrimSpace(f.Category); s != "" {
		q = q.Where("LOWER(category) = ?", strings.ToLower(s))
	}
	if f.AvailableOnly {
		q = q.Where("available_copies > 0")
	}
	books := []models.Book{}
	if err := q.Order("title ASC").Order("book_id ASC").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *Repo) CountBooks(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Book{}).Count(&n).Error
	return n, err
}

// UpdateBookDetails rewrites metadata and total copies of a book without ever taking
// available_copies from the caller: the copies currently out are preserved and the
// available counter is recomputed from the new total.
func (r *Repo) UpdateBookDetails(ctx context.Context, in *models.Book) (*models.Book, error) {
	var out *models.Book
	err := r.WithTx(ctx, func(tx *Repo) error {
		cur, err := tx.LockBook(ctx, in.ID)
		if err != nil {
			return err
		}
		if dup, err := tx.ISBNExists(ctx, in.ISBN, in.ID); err != nil {
			return err
		} else if dup {
			return ErrDuplicateISBN
		}
		copiesOut := cur.CopiesOut()
		if in.TotalCopies < copiesOut {
			return ErrTotalBelowOut
		}
		err = tx.DB.WithContext(ctx).Model(cur).Updates(map[string]any{
			"title":            in.Title,
			"author":           in.Author,
			"isbn":             in.ISBN,
			"publisher":        in.Publisher,
			"publication_year": in.PublicationYear,
			"category":         in.Category,
			"total_copies":     in.TotalCopies,
			"available_copies": in.TotalCopies - copiesOut,
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateISBN
		}
		if err != nil {
			return err
		}
		out, err = tx.FindBookByID(ctx, in.ID)
		return err
	})
	return out, err
}

// DeleteBook soft-deletes a book with no copies out; loan history keeps pointing at it.
func (r *Repo) DeleteBook(ctx context.Context, id uint) error {
	return r.WithTx(ctx, func(tx *Repo) error {
		b, err := tx.LockBook(ctx, id)
		if err != nil {
			return err
		}
		if b.AvailableCopies < b.TotalCopies {
			return ErrCopiesOut
		}
		open, err := tx.CountOpenLoansForBook(ctx, id)
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrCopiesOut
		}
		return tx.DB.WithContext(ctx).Delete(&models.Book{}, "book_id = ?", id).Error
	})
}

// AdjustAvailable moves the available counter by delta, keeping 0 <= available <= total.
// Only the loan transactions call this.
func (r *Repo) AdjustAvailable(ctx context.Context, bookID uint, delta int) error {
	res := r.DB.WithContext(ctx).Model(&models.Book{}).
		Where("book_id = ? AND available_copies + ? >= 0 AND available_copies + ? <= total_copies", bookID, delta, delta).
		Update("available_copies", gorm.Expr("available_copies + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrCounterOutOfRange
	}
	return nil
}
