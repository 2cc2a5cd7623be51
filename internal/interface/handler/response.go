package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError is the body of every error response
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes a JSON error
func RespondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: message,
			Code:    code,
		},
	})
}

// RespondOK writes payload as JSON with status 200
func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// HealthCheck reports liveness
func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "Healthy")
}
