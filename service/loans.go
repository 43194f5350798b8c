package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library_backend/config"
	"library_backend/db"
	"library_backend/logging"
	"library_backend/models"
)

// ReturnReceipt describes a completed return.
type ReturnReceipt struct {
	Loan        models.IssuedBook
	DaysOverdue int
	Fine        float64
	Message     string
}

// LoanService runs the issue and return transactions. It is the only writer of
// books.available_copies after a book is created.
type LoanService struct {
	repo   *db.Repo
	log    logging.Logger
	policy config.LoanPolicy

	// Now is the clock; tests move it.
	Now func() time.Time
}

func NewLoanService(repo *db.Repo, log logging.Logger, policy config.LoanPolicy) *LoanService {
	return &LoanService{repo: repo, log: log, policy: policy, Now: time.Now}
}

func (s *LoanService) Policy() config.LoanPolicy { return s.policy }

func (s *LoanService) today() time.Time { return Today(s.Now()) }

// Issue lends one copy of bookID to userID.
//
// The user row is locked first so that two issues for the same user cannot both
// pass the quota check, then the book row so two issues cannot take the last copy.
func (s *LoanService) Issue(ctx context.Context, bookID, userID uint) (*models.IssuedBook, error) {
	if bookID == 0 || userID == 0 {
		return nil, invalid("Invalid book or user ID")
	}
	var loan *models.IssuedBook
	err := s.repo.WithTx(ctx, func(tx *db.Repo) error {
		if _, err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		b, err := tx.LockBook(ctx, bookID)
		if err != nil {
			return err
		}
		if b.AvailableCopies <= 0 {
			return db.ErrNoCopiesAvailable
		}
		same, err := tx.CountOpenLoansForUserBook(ctx, userID, bookID)
		if err != nil {
			return err
		}
		if same > 0 {
			return db.ErrAlreadyIssued
		}
		open, err := tx.CountOpenLoansByUser(ctx, userID)
		if err != nil {
			return err
		}
		if open >= int64(s.policy.MaxBooksPerUser) {
			return db.ErrQuotaExceeded
		}

		issued := s.today()
		loan = &models.IssuedBook{
			BookID:    bookID,
			UserID:    userID,
			IssueDate: issued,
			DueDate:   DueDate(issued, s.policy.IssueDays),
			Status:    models.StatusIssued,
		}
		if err := tx.CreateIssuedBook(ctx, loan); err != nil {
			return err
		}
		if err := tx.AdjustAvailable(ctx, bookID, -1); err != nil {
			if errors.Is(err, db.ErrCounterOutOfRange) {
				return db.ErrNoCopiesAvailable
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.translate(ctx, "issue", err)
	}
	s.log.Info(ctx, "book issued",
		"issue_id", loan.ID, "book_id", bookID, "user_id", userID, "due", loan.DueDate.Format(time.DateOnly))
	return loan, nil
}

// Return closes an open loan, finalizes its fine and frees the copy.
func (s *LoanService) Return(ctx context.Context, issueID uint) (*ReturnReceipt, error) {
	if issueID == 0 {
		return nil, invalid("Invalid issue ID")
	}
	var rc ReturnReceipt
	err := s.repo.WithTx(ctx, func(tx *db.Repo) error {
		loan, err := tx.LockIssuedBook(ctx, issueID)
		if err != nil {
			return err
		}
		if !loan.IsOpen() {
			return db.ErrAlreadyReturned
		}
		returned := s.today()
		rc.DaysOverdue = DaysOverdue(loan.DueDate, returned)
		rc.Fine = Fine(loan.DueDate, returned, s.policy.FinePerDay)
		if err := tx.MarkReturned(ctx, issueID, returned, rc.Fine); err != nil {
			return err
		}
		if err := tx.AdjustAvailable(ctx, loan.BookID, +1); err != nil {
			return fmt.Errorf("release copy of book %d: %w", loan.BookID, err)
		}
		loan.Status = models.StatusReturned
		loan.ReturnDate = &returned
		loan.FineAmount = rc.Fine
		rc.Loan = *loan
		return nil
	})
	if err != nil {
		return nil, s.translate(ctx, "return", err)
	}
	if rc.Fine > 0 {
		rc.Message = fmt.Sprintf("Book returned successfully. Fine: Rs %.2f", rc.Fine)
	} else {
		rc.Message = "Book returned successfully. No fine"
	}
	s.log.Info(ctx, "book returned",
		"issue_id", issueID, "book_id", rc.Loan.BookID, "days_overdue", rc.DaysOverdue, "fine", rc.Fine)
	return &rc, nil
}

// OpenLoans lists every open loan, newest issue first.
func (s *LoanService) OpenLoans(ctx context.Context) ([]models.LoanView, error) {
	return s.views(ctx, "open loans", db.LoanQuery{OpenOnly: true})
}

func (s *LoanService) OpenLoansByUser(ctx context.Context, userID uint) ([]models.LoanView, error) {
	if userID == 0 {
		return nil, invalid("Invalid user ID")
	}
	return s.views(ctx, "open loans by user", db.LoanQuery{UserID: userID, OpenOnly: true})
}

// HistoryByUser lists all loans of a user in any status.
func (s *LoanService) HistoryByUser(ctx context.Context, userID uint) ([]models.LoanView, error) {
	if userID == 0 {
		return nil, invalid("Invalid user ID")
	}
	return s.views(ctx, "loan history", db.LoanQuery{UserID: userID})
}

// Overdue lists open loans whose due date is before today, earliest due first.
func (s *LoanService) Overdue(ctx context.Context) ([]models.LoanView, error) {
	today := s.today()
	return s.views(ctx, "overdue loans", db.LoanQuery{OverdueAsOf: &today, OrderByDue: true})
}

func (s *LoanService) AllHistory(ctx context.Context) ([]models.LoanView, error) {
	return s.views(ctx, "all loans", db.LoanQuery{})
}

func (s *LoanService) OpenCountByUser(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, invalid("Invalid user ID")
	}
	n, err := s.repo.CountOpenLoansByUser(ctx, userID)
	if err != nil {
		return 0, s.fail(ctx, "open count", err)
	}
	return n, nil
}

func (s *LoanService) Get(ctx context.Context, issueID uint) (*models.LoanView, error) {
	if issueID == 0 {
		return nil, invalid("Invalid issue ID")
	}
	v, err := s.repo.FindLoanView(ctx, issueID)
	if err != nil {
		return nil, s.translate(ctx, "get loan", err)
	}
	return v, nil
}

// Reconcile recomputes every live book's available counter from its open loans
// and logs each row it had to repair.
func (s *LoanService) Reconcile(ctx context.Context) ([]db.Discrepancy, error) {
	fixed, err := s.repo.ReconcileAvailableCopies(ctx)
	if err != nil {
		return nil, s.fail(ctx, "reconcile", err)
	}
	for _, d := range fixed {
		s.log.Warn(ctx, "available copies repaired",
			"book_id", d.BookID, "title", d.Title, "total", d.Total,
			"available", d.Available, "open_loans", d.OpenLoans, "expected", d.Expected)
	}
	s.log.Info(ctx, "reconcile finished", "repaired", len(fixed))
	return fixed, nil
}

func (s *LoanService) views(ctx context.Context, op string, q db.LoanQuery) ([]models.LoanView, error) {
	out, err := s.repo.ListLoanViews(ctx, q)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	return out, nil
}

func (s *LoanService) translate(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, db.ErrBookNotFound):
		return newErr(KindNotFound, "Book not found")
	case errors.Is(err, db.ErrUserNotFound):
		return newErr(KindNotFound, "User not found")
	case errors.Is(err, db.ErrIssueNotFound):
		return newErr(KindNotFound, "Issue record not found")
	case errors.Is(err, db.ErrNoCopiesAvailable):
		return newErr(KindUnavailable, "Book is not available. All copies are issued")
	case errors.Is(err, db.ErrAlreadyIssued):
		return newErr(KindAlreadyIssued, "You have already issued this book. Return it before issuing again")
	case errors.Is(err, db.ErrQuotaExceeded):
		return newErr(KindQuotaExceeded,
			fmt.Sprintf("You have reached the maximum limit of %d books", s.policy.MaxBooksPerUser))
	case errors.Is(err, db.ErrAlreadyReturned):
		return newErr(KindAlreadyReturn, "Book has already been returned")
	}
	return s.fail(ctx, op, err)
}

func (s *LoanService) fail(ctx context.Context, op string, err error) error {
	s.log.Error(ctx, "loan store error", "op", op, "err", err)
	return storeErr(err)
}
