package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
)

// APIError is the error body returned by every endpoint.
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// handleError maps err onto a status code and writes the error body.
func handleError(c *gin.Context, err error) {
	var de *deskerrors.DeskError
	if errors.As(err, &de) {
		body := APIError{Error: de.What, Code: string(de.Code), Details: de.Why}
		if de.Cause != nil && body.Details == "" {
			body.Details = de.Cause.Error()
		}
		c.AbortWithStatusJSON(de.HTTPStatus(), body)
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, APIError{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string, err error) {
	body := APIError{Error: msg, Code: string(deskerrors.CodeValidation)}
	if err != nil {
		body.Details = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}
