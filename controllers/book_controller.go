package controllers

import (
	"net/http"
	"strings"

	"library_backend/app"
	"library_backend/models"
	"library_backend/service"

	"github.com/gin-gonic/gin"
)

type BookController struct{ *Srv }

func NewBookController(s *Srv) *BookController { return &BookController{Srv: s} }

type bookReq struct {
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	ISBN            string  `json:"isbn"`
	Publisher       string  `json:"publisher"`
	PublicationYear flexInt `json:"publicationYear"`
	Category        string  `json:"category"`
	TotalCopies     flexInt `json:"totalCopies"`
	AvailableCopies flexInt `json:"availableCopies"`
}

// 非数字按 0 / -1 处理，交给服务层给出字段级错误
func (r bookReq) input() service.BookInput {
	in := service.BookInput{
		Title:           r.Title,
		Author:          r.Author,
		ISBN:            r.ISBN,
		Publisher:       r.Publisher,
		PublicationYear: r.PublicationYear.Value,
		Category:        r.Category,
		TotalCopies:     r.TotalCopies.Value,
		AvailableCopies: r.AvailableCopies.ptr(),
	}
	if r.PublicationYear.Bad {
		in.PublicationYear = 0
	}
	if r.TotalCopies.Bad {
		in.TotalCopies = 0
	}
	if r.AvailableCopies.Bad {
		bad := -1
		in.AvailableCopies = &bad
	}
	return in
}

// GET /api/books?action=search&type=title|author|category&query=…
// GET /api/books?action=available
// GET /api/books?action=category&category=…
func (bc *BookController) ListBooks(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		books []models.Book
		err   error
	)
	switch c.Query("action") {
	case "search":
		q := c.Query("query")
		switch strings.ToLower(c.Query("type")) {
		case "title":
			books, err = bc.Catalog.SearchByTitle(ctx, q)
		case "author":
			books, err = bc.Catalog.SearchByAuthor(ctx, q)
		case "category":
			books, err = bc.Catalog.ByCategory(ctx, q)
		default:
			books, err = bc.Catalog.List(ctx)
		}
	case "available":
		books, err = bc.Catalog.Available(ctx)
	case "category":
		books, err = bc.Catalog.ByCategory(ctx, c.Query("category"))
	default:
		books, err = bc.Catalog.List(ctx)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

// GET /api/books/:id
func (bc *BookController) GetBook(c *gin.Context) {
	b, err := bc.Catalog.Get(c.Request.Context(), idParam(c, "id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /api/books
func (bc *BookController) AddBook(c *gin.Context) {
	var req bookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		app.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	b, err := bc.Catalog.Add(c.Request.Context(), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"success": true, "message": "Book added successfully", "bookId": b.ID})
}

// PUT /api/books/:id  availableCopies 不接受，由借出数推导
func (bc *BookController) UpdateBook(c *gin.Context) {
	var req bookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		app.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	b, err := bc.Catalog.Update(c.Request.Context(), idParam(c, "id"), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"success": true, "message": "Book updated successfully", "book": b})
}

// DELETE /api/books/:id
func (bc *BookController) DeleteBook(c *gin.Context) {
	if err := bc.Catalog.Delete(c.Request.Context(), idParam(c, "id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Book deleted successfully")
}
