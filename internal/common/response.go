package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK writes payload as-is with status 200.
func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// Fail aborts with {"error": msg, "code": code}.
func Fail(c *gin.Context, status int, code int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}
