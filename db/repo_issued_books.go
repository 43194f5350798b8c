// db/repo_issued_books.go
package db

import (
	"context"
	"errors"
	"time"

	"library_backend/models"

	"gorm.io/gorm"
)

func (r *Repo) openLoans(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&models.IssuedBook{}).Where("status = ?", models.StatusIssued)
}

func (r *Repo) CountOpenLoansByUser(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.openLoans(ctx).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *Repo) CountOpenLoansForBook(ctx context.Context, bookID uint) (int64, error) {
	var n int64
	err := r.openLoans(ctx).Where("book_id = ?", bookID).Count(&n).Error
	return n, err
}

func (r *Repo) CountOpenLoansForUserBook(ctx context.Context, userID, bookID uint) (int64, error) {
	var n int64
	err := r.openLoans(ctx).Where("user_id = ? AND book_id = ?", userID, bookID).Count(&n).Error
	return n, err
}

func (r *Repo) CreateIssuedBook(ctx context.Context, l *models.IssuedBook) error {
	err := r.DB.WithContext(ctx).Create(l).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 部分唯一索引兜底
		return ErrAlreadyIssued
	}
	return err
}

// LockIssuedBook loads a loan row for update.
func (r *Repo) LockIssuedBook(ctx context.Context, id uint) (*models.IssuedBook, error) {
	var l models.IssuedBook
	if err := r.forUpdate(ctx).First(&l, "issue_id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrIssueNotFound)
	}
	return &l, nil
}

// MarkReturned closes an open loan. The status guard makes a second close a no-op error.
func (r *Repo) MarkReturned(ctx context.Context, id uint, returnDate time.Time, fine float64) error {
	res := r.DB.WithContext(ctx).Model(&models.IssuedBook{}).
		Where("issue_id = ? AND status = ?", id, models.StatusIssued).
		Updates(map[string]any{
			"status":      models.StatusReturned,
			"return_date": returnDate,
			"fine_amount": fine,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyReturned
	}
	return nil
}

// LoanQuery selects loan views. Zero values mean "any".
type LoanQuery struct {
	UserID      uint
	OpenOnly    bool
	OverdueAsOf *time.Time // status ISSUED AND due_date < this day
	OrderByDue  bool       // 默认按 issue_date 倒序
}

// ListLoanViews joins loans with book title/author and user full name.
// Soft-deleted books still resolve so history stays readable.
func (r *Repo) ListLoanViews(ctx context.Context, q LoanQuery) ([]models.LoanView, error) {
	qry := r.loanViews(ctx)
	if q.UserID != 0 {
		qry = qry.Where("ib.user_id = ?", q.UserID)
	}
	if q.OpenOnly || q.OverdueAsOf != nil {
		qry = qry.Where("ib.status = ?", models.StatusIssued)
	}
	if q.OverdueAsOf != nil {
		qry = qry.Where("ib.due_date < ?", *q.OverdueAsOf)
	}
	if q.OrderByDue {
		qry = qry.Order("ib.due_date ASC")
	} else {
		qry = qry.Order("ib.issue_date DESC")
	}
	views := []models.LoanView{}
	if err := qry.Order("ib.issue_id DESC").Scan(&views).Error; err != nil {
		return nil, err
	}
	return views, nil
}

func (r *Repo) FindLoanView(ctx context.Context, issueID uint) (*models.LoanView, error) {
	var views []models.LoanView
	if err := r.loanViews(ctx).Where("ib.issue_id = ?", issueID).Limit(1).Scan(&views).Error; err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, ErrIssueNotFound
	}
	return &views[0], nil
}

func (r *Repo) loanViews(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Table(models.IssuedBookTable + " ib").
		Select(`
			ib.*,
			b.title     AS book_title,
			b.author    AS book_author,
			u.full_name AS user_name
		`).
		Joins("LEFT JOIN " + models.BookTable + " b ON b.book_id = ib.book_id").
		Joins("LEFT JOIN " + models.UserTable + " u ON u.user_id = ib.user_id")
}

// Discrepancy is one book whose cached counter disagreed with its open loans.
type Discrepancy struct {
	BookID    uint
	Title     string
	Total     int
	Available int
	OpenLoans int
	Expected  int
}

// ReconcileAvailableCopies recomputes available_copies = total_copies - open loans for
// every live book and rewrites the rows that disagree.
func (r *Repo) ReconcileAvailableCopies(ctx context.Context) ([]Discrepancy, error) {
	var fixed []Discrepancy
	err := r.WithTx(ctx, func(tx *Repo) error {
		var rows []Discrepancy
		err := tx.DB.WithContext(ctx).
			Table(models.BookTable+" b").
			Select(`
				b.book_id          AS book_id,
				b.title            AS title,
				b.total_copies     AS total,
				b.available_copies AS available,
				COUNT(ib.issue_id) AS open_loans
			`).
			Joins("LEFT JOIN "+models.IssuedBookTable+" ib ON ib.book_id = b.book_id AND ib.status = ?", models.StatusIssued).
			Where("b.deleted_at IS NULL").
			Group("b.book_id, b.title, b.total_copies, b.available_copies").
			Order("b.book_id").
			Scan(&rows).Error
		if err != nil {
			return err
		}
		for _, d := range rows {
			d.Expected = d.Total - d.OpenLoans
			if d.Expected < 0 {
				// 借出数超过总数：只能把总数抬上来
				d.Expected = 0
			}
			if d.Expected == d.Available && d.OpenLoans <= d.Total {
				continue
			}
			updates := map[string]any{"available_copies": d.Expected}
			if d.OpenLoans > d.Total {
				updates["total_copies"] = d.OpenLoans
			}
			if err := tx.DB.WithContext(ctx).Model(&models.Book{}).
				Where("book_id = ?", d.BookID).
				Updates(updates).Error; err != nil {
				return err
			}
			fixed = append(fixed, d)
		}
		return nil
	})
	return fixed, err
}
