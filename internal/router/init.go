package router

import (
	userapp "github.com/delivio/user-service/internal/application"
	"github.com/delivio/user-service/internal/container"
	repouser "github.com/delivio/user-service/internal/domain/repository"
	pginfra "github.com/delivio/user-service/internal/infrastructure/postgres"
	"github.com/delivio/user-service/internal/infrastructure/rediscache"
	handlers "github.com/delivio/user-service/internal/interface/http"
	"github.com/delivio/user-service/internal/router/modules"
)

type UserModuleDeps struct {
	Repo    repouser.UserRepository
	Service *userapp.Service
	Handler *handlers.UserHandler
}

func buildUserDeps() UserModuleDeps {
	cfg := container.GetConfig()
	repo := pginfra.NewUserRepository(container.GetPGPool())

	service := userapp.NewService(
		repo,
		rediscache.New(container.GetRedis()),
		container.GetRabbitPub(),
		container.GetLogger(),
		container.GetES(),
		cfg.ESUsersIndex,
		cfg.CacheTTL,
		cfg.CourierQueue,
	)

	handler := handlers.NewUserHandler(service, container.GetLogger())

	return UserModuleDeps{Repo: repo, Service: service, Handler: handler}
}

// InitModules initializes all application modules and registers them with the
// router registry. Called once during startup.
func InitModules(r *Registry) {
	userDeps := buildUserDeps()
	r.Add(modules.NewUserModule(userDeps.Handler, userDeps.Repo, container.GetJWT()))
}
