package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/delivio/user-service/internal/domain/repository"
	"github.com/delivio/user-service/pkg/helpers"
	"github.com/delivio/user-service/pkg/response"
)

// CtxUserKey is the Gin context key holding the authenticated user's row.
const CtxUserKey = "currentUser"

// CurrentUser holds the identity resolved from the bearer token. Only the
// fields the protected handlers need are carried.
type CurrentUser struct {
	ID       int64
	Username string
}

// Auth validates the Authorization bearer token (HS256, sub = username),
// loads the subject's row, and stores it in the context. Missing or invalid
// token is 401; a token whose subject no longer exists is 404.
func Auth(jwt *helpers.JWTManager, repo repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.AbortError(c, http.StatusUnauthorized, "could not validate credentials")
			return
		}

		username, err := jwt.Parse(token)
		if err != nil {
			response.AbortError(c, http.StatusUnauthorized, "could not validate credentials")
			return
		}

		u, err := repo.FindByUsername(c.Request.Context(), username)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				response.AbortError(c, http.StatusNotFound, "user not found")
				return
			}
			response.AbortError(c, http.StatusInternalServerError, "internal server error")
			return
		}

		c.Set(CtxUserKey, &CurrentUser{ID: u.ID, Username: u.Username})
		c.Next()
	}
}

// UserFromCtx returns the authenticated user stored by Auth.
func UserFromCtx(c *gin.Context) (*CurrentUser, bool) {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*CurrentUser)
	return u, ok
}
