package routes

import (
	"net/http"

	"library_backend/app"
	"library_backend/controllers"
	"library_backend/db"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	uc := controllers.NewUserController(s)
	bc := controllers.NewBookController(s)
	ic := controllers.NewIssueController(s)

	// 复用的中间件
	sessMW := app.LoadSession(a.AppSessions(), a.Identity)
	authMW := app.AuthRequired()
	adminMW := app.AdminOnly()
	throttleMW := app.LoginThrottle(a.RDB, a.Config.LoginMaxAttempts, a.Config.LoginWindow, a.Log)

	r.GET("/healthz", func(c *app.Ctx) {
		if err := db.Ping(c.Request.Context(), a.DB); err != nil {
			c.JSON(http.StatusServiceUnavailable, app.H{"ok": false})
			return
		}
		c.JSON(http.StatusOK, app.H{"ok": true})
	})

	api := r.Group("/api", sessMW)

	// ------------------------------
	// 注册 / 登录
	// ------------------------------
	api.POST("/register", uc.Register)
	api.POST("/login", throttleMW, uc.Login)
	api.POST("/logout", uc.Logout)
	api.GET("/whoami", authMW, uc.WhoAmI)

	// ------------------------------
	// 图书：浏览公开，增删改仅管理员
	// ------------------------------
	api.GET("/books", bc.ListBooks)
	api.GET("/books/:id", bc.GetBook)
	booksAdmin := api.Group("/books", adminMW)
	{
		booksAdmin.POST("", bc.AddBook)
		booksAdmin.PUT("/:id", bc.UpdateBook)
		booksAdmin.DELETE("/:id", bc.DeleteBook)
	}

	// ------------------------------
	// 借还
	// ------------------------------
	issue := api.Group("/issue", authMW)
	{
		issue.GET("", ic.ListIssued) // ?action=mybooks|history|overdue|all|count&userId=
		issue.POST("", ic.Handle)
	}

	// ------------------------------
	// 用户管理（仅管理员）
	// ------------------------------
	users := api.Group("/users", adminMW)
	{
		users.GET("", uc.ListUsers)
		users.GET("/:id", uc.GetUser)
		users.PUT("/:id", uc.UpdateUser)
		users.DELETE("/:id", uc.DeleteUser)
	}
}
