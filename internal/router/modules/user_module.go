package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/delivio/user-service/internal/container"
	repouser "github.com/delivio/user-service/internal/domain/repository"
	handlers "github.com/delivio/user-service/internal/interface/http"
	"github.com/delivio/user-service/internal/interface/middleware"
	"github.com/delivio/user-service/pkg/helpers"
)

// UserModule wires the user endpoints onto the versioned API group.
// Public: create-user and the three read paths. Protected (bearer token):
// update-password, update-profile, search-users.
type UserModule struct {
	Handler *handlers.UserHandler
	Repo    repouser.UserRepository
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, repo repouser.UserRepository, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, Repo: repo, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	// Credential checks are the obvious brute-force target
	credentialLimiter := middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByIP())
	createLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP())

	rg.POST("/create-user/", createLimiter, m.Handler.CreateUser)
	rg.GET("/get-user/:id/", m.Handler.GetUser)
	rg.GET("/get-user-by-username-password/:username/:password", credentialLimiter, m.Handler.GetUserByUsernamePassword)
	rg.GET("/get-user-by-username/:username", m.Handler.GetUserByUsername)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT, m.Repo))
	auth.Use(middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUser()))
	{
		auth.PATCH("/update-password/", m.Handler.UpdatePassword)
		auth.PATCH("/update-profile/", m.Handler.UpdateProfile)
		auth.GET("/search-users", m.Handler.SearchUsers)
	}
}
