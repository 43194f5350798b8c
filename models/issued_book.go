// models/issued_book.go
package models

import "time"

const IssuedBookTable = "issued_books"

type LoanStatus string

const (
	StatusIssued   LoanStatus = "ISSUED"
	StatusReturned LoanStatus = "RETURNED"
)

// IssuedBook is one loan: a copy of a book out to a user.
// Status ISSUED <=> ReturnDate == nil.
type IssuedBook struct {
	ID         uint       `gorm:"column:issue_id;primaryKey;autoIncrement" json:"issueId"`
	BookID     uint       `gorm:"not null;index" json:"bookId"`
	UserID     uint       `gorm:"not null;index" json:"userId"`
	IssueDate  time.Time  `gorm:"type:date;not null;index" json:"issueDate"`
	DueDate    time.Time  `gorm:"type:date;not null;index" json:"dueDate"`
	ReturnDate *time.Time `gorm:"type:date" json:"returnDate"`
	Status     LoanStatus `gorm:"size:20;not null;index" json:"status"`
	FineAmount float64    `gorm:"type:numeric(10,2);not null;default:0" json:"fineAmount"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (IssuedBook) TableName() string { return IssuedBookTable }

func (l IssuedBook) IsOpen() bool { return l.Status == StatusIssued }

// LoanView is an IssuedBook joined with the display fields of its book and user.
type LoanView struct {
	IssuedBook
	BookTitle  string `json:"bookTitle"`
	BookAuthor string `json:"bookAuthor"`
	UserName   string `json:"userName"`
}
