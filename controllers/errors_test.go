package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fitsense-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRespondServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		code int
	}{
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrEntryNotFound, http.StatusNotFound},
		{services.ErrPlanNotFound, http.StatusNotFound},
		{services.ErrInvalidAmount, http.StatusBadRequest},
		{fmt.Errorf("%w: bad phone", services.ErrInvalidInput), http.StatusBadRequest},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrLinkedRecord, http.StatusForbidden},
		{services.ErrDuplicatePhone, http.StatusConflict},
		{services.ErrConcurrentModification, http.StatusConflict},
		{services.ErrNoActiveMembership, http.StatusConflict},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		respondServiceError(c, tc.err)
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
		assert.True(t, c.IsAborted())
	}
}

func TestRespondServiceErrorHidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondServiceError(c, errors.New("pq: connection refused"))
	assert.NotContains(t, w.Body.String(), "pq:")
}
