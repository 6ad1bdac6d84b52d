package response

import "github.com/gin-gonic/gin"

// The wire contract returns raw payloads on success and a {"detail": ...}
// object on failure; downstream consumers compare queue messages against
// response bodies byte for byte, so no envelope is added.

type Detail struct {
	Detail string `json:"detail"`
}

func JSON[T any](c *gin.Context, status int, data T) {
	c.JSON(status, data)
}

func Error(c *gin.Context, status int, detail string) {
	c.JSON(status, Detail{Detail: detail})
}

func ErrorWith(c *gin.Context, status int, detail string, fields any) {
	c.JSON(status, gin.H{"detail": detail, "errors": fields})
}

// AbortError writes the error body and stops the handler chain (middleware use).
func AbortError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, Detail{Detail: detail})
}
