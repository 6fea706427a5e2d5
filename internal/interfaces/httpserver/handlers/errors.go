package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func handleError(c *gin.Context, err error) {
	_ = c.Error(err)
	errorType := platformerrors.TypeOf(err)
	status := platformerrors.ErrorTypeToHTTPStatus(errorType)
	message := "internal error"
	if status < http.StatusInternalServerError {
		message = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: strings.ToLower(string(errorType)), Message: message})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: strings.ToLower(string(platformerrors.ErrorTypeValidation)), Message: err.Error()})
}
