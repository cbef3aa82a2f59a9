package api

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ajharbinger/crm-pipeline/internal/auth"
	"github.com/ajharbinger/crm-pipeline/internal/errors"
)

// respondError writes err as {"error","code","details"} with the status
// its code maps to. Unexpected errors are reported without their cause.
func respondError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	_ = c.Error(err)

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		c.JSON(status, gin.H{"error": "Internal server error", "code": errors.ErrCodeInternalError})
		return
	}
	body := gin.H{"error": appErr.Message, "code": appErr.Code}
	if appErr.Details != "" {
		body["details"] = appErr.Details
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"error": message, "code": errors.ErrCodeInvalidInput}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

// paramID parses the :id path parameter, answering 400 when it is not a UUID.
func paramID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// actor returns the authenticated user's id for audit fields.
func actor(c *gin.Context) *uuid.UUID {
	if id, ok := auth.CurrentUserID(c); ok {
		return &id
	}
	return nil
}

// queryInt reads an integer query parameter, falling back to def when it is
// absent. ok is false (and a 400 written) when the value does not parse.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, name+" must be an integer", nil)
		return 0, false
	}
	return v, true
}

func now() time.Time {
	return time.Now().UTC()
}
