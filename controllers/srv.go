// controllers/srv.go
package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"library_backend/app"
	"library_backend/config"
	"library_backend/logging"
	"library_backend/service"
	"library_backend/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Srv struct {
	Catalog  *service.CatalogService
	Identity *service.IdentityService
	Loans    *service.LoanService
	AppSess  *session.AppSessionStore
	Cfg      config.Config
	Log      logging.Logger
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Catalog:  a.Catalog,
		Identity: a.Identity,
		Loans:    a.Loans,
		AppSess:  a.AppSessions(),
		Cfg:      a.Config,
		Log:      a.Log,
	}
}

// --- helpers ---

// statusOf maps an error kind to the HTTP status of the envelope.
func statusOf(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindAuthFailed:
		return http.StatusUnauthorized
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindDuplicate, service.KindUnavailable, service.KindAlreadyIssued,
		service.KindQuotaExceeded, service.KindAlreadyReturn, service.KindBusy:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func fail(c *gin.Context, err error) {
	var se *service.Error
	if errors.As(err, &se) && se.Retryable() {
		c.Header("Retry-After", "1")
	}
	app.Fail(c, statusOf(service.KindOf(err)), service.MessageOf(err))
}

func ok(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, app.H{"success": true, "message": msg})
}

// idParam 解析路径上的数字 ID，非法时返回 0
func idParam(c *gin.Context, name string) uint {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}

// 统一设置业务会话 Cookie
func (s *Srv) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.Cfg.SecureCookies(),
		MaxAge:   int(maxAge / time.Second),
	})
}

func (s *Srv) clearAppCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.Cfg.SecureCookies(),
	})
}

// 登录成功：创建会话并下发 Cookie
func (s *Srv) issueSession(ctx context.Context, w http.ResponseWriter, userID uint) error {
	id := uuid.NewString()
	if err := s.AppSess.Create(ctx, id, userID); err != nil {
		return err
	}
	s.setAppCookie(w, id, s.AppSess.TTL())
	return nil
}
