package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-document-gateway/service"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		kind error
		want int
	}{
		{service.ErrUnauthenticated, http.StatusUnauthorized},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrStoreInconsistency, http.StatusConflict},
		{service.ErrDependencyTimeout, http.StatusGatewayTimeout},
		{service.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{service.ErrMetadataWriteError, http.StatusBadGateway},
		{service.ErrValidation, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusCode(&service.Error{Kind: tt.kind}), "kind %v", tt.kind)
	}
}

func TestJSONErrorBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	JSONError(c, &service.Error{Kind: service.ErrForbidden, Reason: "not-owner", Path: "bob/b.pdf"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "forbidden", body["error"])
	assert.Equal(t, "not-owner", body["reason"])
	assert.Equal(t, "bob/b.pdf", body["path"])
}

func TestJSONErrorUnclassified(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	JSONError(c, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
	assert.NotContains(t, w.Body.String(), "boom")
}
