package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stevross-git/orchestrator/internal/orcherr"
)

// statusFor maps an orcherr.Code to the HTTP status spec.md §7's table
// assigns it. A non-orcherr error (should not normally happen at this
// layer) maps to 500.
func statusFor(err error) int {
	var oe *orcherr.Error
	if !errors.As(err, &oe) {
		return http.StatusInternalServerError
	}
	switch oe.Code {
	case orcherr.InvalidInput:
		return http.StatusBadRequest
	case orcherr.UnknownEntity:
		return http.StatusNotFound
	case orcherr.Conflict:
		return http.StatusConflict
	case orcherr.QueueFull:
		return http.StatusServiceUnavailable
	case orcherr.Timeout:
		return http.StatusGatewayTimeout
	case orcherr.NodeFailure, orcherr.TransientDispatch, orcherr.PermanentDispatch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends err as a JSON body with the status statusFor maps it
// to.
func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
