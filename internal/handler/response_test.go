package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.NewNotFound("appointment", nil), http.StatusNotFound},
		{apperrors.NewBadRequest("bad", nil), http.StatusBadRequest},
		{apperrors.Unauthorized(nil), http.StatusUnauthorized},
		{apperrors.Forbidden("no"), http.StatusForbidden},
		{apperrors.NewConflict("taken"), http.StatusConflict},
		{apperrors.NewCompensation("rolled back", errors.New("db down")), http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", apperrors.NewConflict("taken")), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), tt.err.Error())
	}
}

func TestRespondErrorWithData_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RespondErrorWithData(c, errors.New("pq: connection refused"), gin.H{"id": 1})

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", body.Message)
	assert.NotNil(t, body.Data)
}

func TestDateRangeQuery(t *testing.T) {
	newContext := func(query string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+query, nil)
		return c
	}

	r, err := DateRangeQuery(newContext("start_date=2025-03-01&end_date=2025-03-31"), nil)
	require.NoError(t, err)
	require.NotNil(t, r.EndDate)
	assert.Equal(t, 31, r.EndDate.Day())

	_, err = DateRangeQuery(newContext("start_date=2025-03-10&end_date=2025-03-01"), nil)
	assert.Error(t, err)

	_, err = DateRangeQuery(newContext("start_date=03/10/2025"), nil)
	assert.Error(t, err)
}
