package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// ContextClinicID is the gin context key the auth middleware stores the
// caller's clinic under.
const ContextClinicID = "clinic_id"

// ContextRequestID holds the id set by the request id middleware.
const ContextRequestID = "request_id"

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrBadRequest:
		return http.StatusBadRequest
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrForbidden:
		return http.StatusForbidden
	case apperrors.ErrConflict:
		return http.StatusConflict
	case apperrors.ErrCompensation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// RespondError writes the error envelope. Internal errors are logged and
// their details kept out of the response.
func RespondError(c *gin.Context, err error) {
	RespondErrorWithData(c, err, nil)
}

// RespondErrorWithData is RespondError with a data payload, used when a
// failed operation still has state to report.
func RespondErrorWithData(c *gin.Context, err error, data interface{}) {
	status := StatusOf(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", c.GetString(ContextRequestID)).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
		message = "internal server error"
	}
	c.JSON(status, &Response{Status: "error", Message: message, Data: data})
}

// BadRequest writes a 400 for a binding or parsing failure.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(message))
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, NewSuccessResponse(data))
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, NewSuccessResponse(data))
}

// ClinicID returns the clinic the authenticated caller acts for.
func ClinicID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(ContextClinicID); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// ParamUUID parses a path parameter, writing a 400 when it is not a UUID.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
