package handlers

import (
	"errors"
	"net/http"

	"github.com/acrylic/rights/models"
	"github.com/acrylic/rights/store"
	"github.com/gin-gonic/gin"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

type ErrorResponse struct {
	RequestID string    `json:"request_id"`
	Error     ErrorBody `json:"error"`
}

// writeError aborts the request with the standard error envelope.
func writeError(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.GetString(requestIDKey),
		Error:     ErrorBody{Code: code, Message: message, Details: details},
	})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(c, http.StatusBadRequest, "validation_error", ve.Message, gin.H{ve.Field: ve.Message})
	case errors.Is(err, store.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", "Not found.", nil)
	case errors.Is(err, store.ErrConflict):
		writeError(c, http.StatusConflict, "conflict", err.Error(), nil)
	default:
		requestLogger(c, h.log).Error("request failed", "err", err)
		writeError(c, http.StatusInternalServerError, "internal_error", "Internal server error.", nil)
	}
}

func invalidJSON(c *gin.Context, err error) {
	writeError(c, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON.", err.Error())
}
