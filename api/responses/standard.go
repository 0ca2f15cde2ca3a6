package responses

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/errors"
)

// StandardResponse represents a standard API response format
type StandardResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}, message ...string) {
	msg := ""
	if len(message) > 0 {
		msg = message[0]
	}
	c.JSON(http.StatusOK, StandardResponse{
		Success:   true,
		Data:      data,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}

// Problem sends an RFC 7807 problem response derived from err
func Problem(c *gin.Context, err error) {
	problem := errors.Problem(err)
	c.Header("Content-Type", "application/problem+json")
	c.JSON(problem.Status, problem)
}
