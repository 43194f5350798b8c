// models/book.go
package models

import (
	"time"

	"gorm.io/gorm"
)

const BookTable = "books"

type Book struct {
	ID              uint   `gorm:"column:book_id;primaryKey;autoIncrement" json:"bookId"`
	Title           string `gorm:"size:255;not null;index" json:"title"`
	Author          string `gorm:"size:255;not null;index" json:"author"`
	ISBN            string `gorm:"column:isbn;size:32;not null" json:"isbn"` // 唯一性由部分索引保证（只看未删除的行）
	Publisher       string `gorm:"size:255" json:"publisher"`
	PublicationYear int    `gorm:"not null" json:"publicationYear"`
	Category        string `gorm:"size:100;index" json:"category"`
	TotalCopies     int    `gorm:"not null" json:"totalCopies"`
	// 只有借还事务会改这个计数
	AvailableCopies int            `gorm:"not null" json:"availableCopies"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Book) TableName() string { return BookTable }

// CopiesOut is the number of copies currently on loan.
func (b Book) CopiesOut() int { return b.TotalCopies - b.AvailableCopies }
