package util

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	assert.Equal(t, 33.3, Round(100.0/3.0, 1))
	assert.Equal(t, 66.7, Round(200.0/3.0, 1))
	assert.Equal(t, 70.0, Round(70, 1))
	assert.Equal(t, 0.67, Round(2.0/3.0, 2))
	assert.Equal(t, 3.0, Round(2.5, 0))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(3, 0))
	assert.Equal(t, 60.0, Percent(3, 5))
	assert.Equal(t, 50.0, Percent(1, 2))
}

func TestParseID(t *testing.T) {
	id, err := ParseID("42")
	assert.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"", "0", "-1", "abc"} {
		_, err := ParseID(bad)
		assert.True(t, IsValidationError(err), bad)
	}
}

func TestHasAllowedExtension(t *testing.T) {
	assert.True(t, HasAllowedExtension("me.PNG", AllowedImageExtensions))
	assert.False(t, HasAllowedExtension("me.exe", AllowedImageExtensions))
}

func TestSniffImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	ct, err := SniffImage(png)
	assert.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	_, err = SniffImage([]byte("plain text, not an image"))
	assert.True(t, IsValidationError(err))
}

func TestHandleServiceErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		want int
	}{
		{NewValidationError("title", "required"), http.StatusBadRequest},
		{ErrRoleMismatch, http.StatusUnauthorized},
		{fmt.Errorf("load: %w", ErrTestNotFound), http.StatusNotFound},
		{ErrNoStatisticsData, http.StatusNotFound},
		{ErrStatisticsRefreshing, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/tests/1/statistics/refresh", nil)
		HandleServiceError(c, tc.err)
		assert.Equal(t, tc.want, w.Code, tc.err.Error())
	}
}
