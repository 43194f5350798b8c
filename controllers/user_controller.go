package controllers

import (
	"errors"
	"net/http"
	"strings"

	"library_backend/app"
	"library_backend/models"
	"library_backend/service"
	"library_backend/session"

	"github.com/gin-gonic/gin"
)

type UserController struct{ *Srv }

func NewUserController(s *Srv) *UserController { return &UserController{Srv: s} }

type registerReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// POST /api/register
func (uc *UserController) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		app.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	role := models.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	// 公开注册默认只能建学生账号
	if role == models.RoleAdmin && !uc.Cfg.AllowAdminSignup && !app.IsAdmin(c) {
		app.Fail(c, http.StatusForbidden, "Only an admin can create admin accounts")
		return
	}
	_, err := uc.Identity.Register(c.Request.Context(), service.Registration{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Email:    req.Email,
		Role:     role,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Registration successful! Please login.")
}

// POST /api/login
func (uc *UserController) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		app.Fail(c, http.StatusBadRequest, "Username and password are required")
		return
	}
	u, err := uc.Identity.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	if err := uc.issueSession(c.Request.Context(), c.Writer, u.ID); err != nil {
		uc.Log.Error(c.Request.Context(), "create session", "user_id", u.ID, "err", err)
		app.Fail(c, http.StatusServiceUnavailable, service.MessageOf(err))
		return
	}
	uc.Log.Info(c.Request.Context(), "user logged in", "user_id", u.ID, "username", u.Username)
	c.JSON(http.StatusOK, app.H{
		"success":  true,
		"message":  "Login successful",
		"userId":   u.ID,
		"username": u.Username,
		"fullName": u.FullName,
		"role":     u.Role,
		"email":    u.Email,
	})
}

// POST /api/logout
func (uc *UserController) Logout(c *gin.Context) {
	if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
		if err := uc.AppSess.Delete(c.Request.Context(), ck.Value); err != nil {
			uc.Log.Warn(c.Request.Context(), "logout: session not removed", "err", err)
		}
	}
	uc.clearAppCookie(c.Writer)
	ok(c, "Logged out")
}

// GET /api/whoami
func (uc *UserController) WhoAmI(c *gin.Context) {
	uid, _ := app.CurrentUserID(c)
	u, err := uc.Identity.Get(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"success": true, "user": u})
}

// GET /api/users?role=STUDENT|ADMIN
func (uc *UserController) ListUsers(c *gin.Context) {
	var (
		users []models.User
		err   error
	)
	role := models.Role(strings.ToUpper(strings.TrimSpace(c.Query("role"))))
	switch role {
	case models.RoleStudent:
		users, err = uc.Identity.ListStudents(c.Request.Context())
	case models.RoleAdmin, "":
		users, err = uc.Identity.List(c.Request.Context())
	default:
		app.Fail(c, http.StatusBadRequest, "Invalid role. Must be ADMIN or STUDENT")
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	if role == models.RoleAdmin {
		admins := users[:0]
		for _, u := range users {
			if u.IsAdmin() {
				admins = append(admins, u)
			}
		}
		users = admins
	}
	c.JSON(http.StatusOK, users)
}

// GET /api/users/:id
func (uc *UserController) GetUser(c *gin.Context) {
	u, err := uc.Identity.Get(c.Request.Context(), idParam(c, "id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// PUT /api/users/:id
func (uc *UserController) UpdateUser(c *gin.Context) {
	var req struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		app.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	u, err := uc.Identity.Update(c.Request.Context(), idParam(c, "id"), service.Profile{
		FullName: req.FullName,
		Email:    req.Email,
		Role:     models.Role(req.Role),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"success": true, "message": "User updated successfully", "user": u})
}

// DELETE /api/users/:id
func (uc *UserController) DeleteUser(c *gin.Context) {
	id := idParam(c, "id")
	// 不允许删除自己，避免锁死
	if uid, _ := app.CurrentUserID(c); uid == id {
		app.Fail(c, http.StatusBadRequest, "You cannot delete your own account")
		return
	}
	if err := uc.Identity.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	// 撤销该用户的所有登录会话
	if err := uc.AppSess.RevokeAllForUser(c.Request.Context(), id); err != nil && !errors.Is(err, session.ErrNoSession) {
		uc.Log.Warn(c.Request.Context(), "revoke sessions", "user_id", id, "err", err)
	}
	ok(c, "User deleted successfully")
}
