package app

import (
	"errors"
	"net/http"

	"library_backend/models"
	"library_backend/service"
	"library_backend/session"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = "library_session"

const (
	ctxUserID   = "userID"
	ctxUsername = "username"
	ctxRole     = "role"
)

// LoadSession resolves the session cookie, if any, into the request context.
// Anonymous requests pass through untouched.
func LoadSession(appSess *session.AppSessionStore, identity *service.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ck, err := c.Request.Cookie(AppSessionCookie)
		if err != nil || ck.Value == "" {
			c.Next()
			return
		}
		as, err := appSess.Get(c.Request.Context(), ck.Value)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) {
				Fail(c, http.StatusServiceUnavailable, service.MessageOf(err))
				return
			}
			c.Next()
			return
		}
		// 确认用户仍存在，顺便拿到角色
		u, err := identity.Get(c.Request.Context(), as.UserID)
		if err != nil {
			if service.KindOf(err) == service.KindNotFound {
				_ = appSess.Delete(c.Request.Context(), ck.Value)
				c.Next()
				return
			}
			Fail(c, http.StatusServiceUnavailable, service.MessageOf(err))
			return
		}
		c.Set(ctxUserID, u.ID)
		c.Set(ctxUsername, u.Username)
		c.Set(ctxRole, u.Role)
		c.Next()
	}
}

// AuthRequired rejects requests without a valid session. It must run after LoadSession.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUserID(c); !ok {
			Fail(c, http.StatusUnauthorized, "Please log in first")
			return
		}
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUserID(c); !ok {
			Fail(c, http.StatusUnauthorized, "Please log in first")
			return
		}
		if !IsAdmin(c) {
			Fail(c, http.StatusForbidden, "Access denied. Admin only")
			return
		}
		c.Next()
	}
}

func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	uid, ok := v.(uint)
	return uid, ok && uid != 0
}

func CurrentRole(c *gin.Context) models.Role {
	v, _ := c.Get(ctxRole)
	r, _ := v.(models.Role)
	return r
}

func IsAdmin(c *gin.Context) bool { return CurrentRole(c) == models.RoleAdmin }
