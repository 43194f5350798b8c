package controllers

import (
	"net/http"
	"strconv"
	"time"

	"library_backend/app"
	"library_backend/models"

	"github.com/gin-gonic/gin"
)

type IssueController struct{ *Srv }

func NewIssueController(s *Srv) *IssueController { return &IssueController{Srv: s} }

// targetUser resolves ?userId= against the session: students only ever see themselves.
func targetUser(c *gin.Context) (uint, bool) {
	self, _ := app.CurrentUserID(c)
	raw := c.Query("userId")
	if raw == "" {
		return self, true
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		app.Fail(c, http.StatusBadRequest, "Invalid user ID")
		return 0, false
	}
	if uint(n) != self && !app.IsAdmin(c) {
		app.Fail(c, http.StatusForbidden, "Access denied")
		return 0, false
	}
	return uint(n), true
}

func requireAdmin(c *gin.Context) bool {
	if !app.IsAdmin(c) {
		app.Fail(c, http.StatusForbidden, "Access denied. Admin only")
		return false
	}
	return true
}

// GET /api/issue?action=mybooks|history|overdue|all|count&userId=
// 无 action 时返回所有未归还记录（管理员）
func (ic *IssueController) ListIssued(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		loans []models.LoanView
		err   error
	)
	switch c.Query("action") {
	case "mybooks":
		uid, okUser := targetUser(c)
		if !okUser {
			return
		}
		loans, err = ic.Loans.OpenLoansByUser(ctx, uid)
	case "history":
		uid, okUser := targetUser(c)
		if !okUser {
			return
		}
		loans, err = ic.Loans.HistoryByUser(ctx, uid)
	case "count":
		uid, okUser := targetUser(c)
		if !okUser {
			return
		}
		n, cerr := ic.Loans.OpenCountByUser(ctx, uid)
		if cerr != nil {
			fail(c, cerr)
			return
		}
		c.JSON(http.StatusOK, app.H{
			"success": true,
			"userId":  uid,
			"count":   n,
			"limit":   ic.Loans.Policy().MaxBooksPerUser,
		})
		return
	case "overdue":
		if !requireAdmin(c) {
			return
		}
		loans, err = ic.Loans.Overdue(ctx)
	case "all":
		if !requireAdmin(c) {
			return
		}
		loans, err = ic.Loans.AllHistory(ctx)
	default:
		if !requireAdmin(c) {
			return
		}
		loans, err = ic.Loans.OpenLoans(ctx)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}

type issueReq struct {
	Action  string  `json:"action"`
	BookID  flexInt `json:"bookId"`
	UserID  flexInt `json:"userId"`
	IssueID flexInt `json:"issueId"`
}

// POST /api/issue {action:"issue",bookId,userId} | {action:"return",issueId}
func (ic *IssueController) Handle(c *gin.Context) {
	var req issueReq
	if err := c.ShouldBindJSON(&req); err != nil {
		app.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	switch req.Action {
	case "issue":
		ic.issue(c, req)
	case "return":
		ic.ret(c, req)
	default:
		app.Fail(c, http.StatusBadRequest, "Invalid action")
	}
}

func (ic *IssueController) issue(c *gin.Context, req issueReq) {
	self, _ := app.CurrentUserID(c)
	userID := req.UserID.id()
	if !req.UserID.Set {
		userID = self
	}
	if userID != self && !app.IsAdmin(c) {
		app.Fail(c, http.StatusForbidden, "You can only issue books to yourself")
		return
	}
	loan, err := ic.Loans.Issue(c.Request.Context(), req.BookID.id(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"success": true,
		"message": "Book issued successfully",
		"issueId": loan.ID,
		"dueDate": loan.DueDate.Format(time.DateOnly),
	})
}

func (ic *IssueController) ret(c *gin.Context, req issueReq) {
	ctx := c.Request.Context()
	issueID := req.IssueID.id()
	if !app.IsAdmin(c) && issueID != 0 {
		// 学生只能还自己的
		v, err := ic.Loans.Get(ctx, issueID)
		if err != nil {
			fail(c, err)
			return
		}
		if self, _ := app.CurrentUserID(c); v.UserID != self {
			app.Fail(c, http.StatusForbidden, "You can only return your own books")
			return
		}
	}
	rc, err := ic.Loans.Return(ctx, issueID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"success":     true,
		"message":     rc.Message,
		"fine":        rc.Fine,
		"daysOverdue": rc.DaysOverdue,
	})
}
