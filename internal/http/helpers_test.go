package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseIDParam_Valid(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "123"}}

	id, ok := parseIDParam(c, "id")

	assert.True(t, ok)
	assert.Equal(t, uint(123), id)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseIDParam_Invalid(t *testing.T) {
	for _, value := range []string{"abc", "-1", "0", ""} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: value}}

		id, ok := parseIDParam(c, "id")

		assert.False(t, ok, value)
		assert.Equal(t, uint(0), id)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_id")
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", defaultPageLimit, 0},
		{"?limit=10&offset=20", 10, 20},
		{"?limit=1000", defaultPageLimit, 0},
		{"?limit=0&offset=-5", defaultPageLimit, 0},
		{"?limit=abc&offset=xyz", defaultPageLimit, 0},
	}

	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)

		limit, offset := parsePagination(c)
		assert.Equal(t, tt.wantLimit, limit, tt.query)
		assert.Equal(t, tt.wantOffset, offset, tt.query)
	}
}

func TestNewPaginatedResponse(t *testing.T) {
	resp := newPaginatedResponse([]int{1, 2}, 45, 20, 20)
	assert.Equal(t, 3, resp.TotalPages)
	assert.True(t, resp.HasMore)

	resp = newPaginatedResponse([]int{}, 0, 20, 0)
	assert.Equal(t, 1, resp.TotalPages)
	assert.False(t, resp.HasMore)
}
