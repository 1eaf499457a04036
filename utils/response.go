package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-document-gateway/service"
)

func JSON200(c *gin.Context, data gin.H) {
	c.JSON(http.StatusOK, data)
}

func JSON201(c *gin.Context, data gin.H) {
	c.JSON(http.StatusCreated, data)
}

func JSON400(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "reason": message})
}

func JSON401(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "reason": message})
}

func JSON403(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "reason": message})
}

func JSON404(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "reason": message})
}

func JSON413(c *gin.Context, message string) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload_too_large", "reason": message})
}

func JSON500(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "reason": message})
}

// StatusCode maps an error kind to its HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrStoreInconsistency):
		return http.StatusConflict
	case errors.Is(err, service.ErrDependencyTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, service.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrMetadataWriteError):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// JSONError writes err as {"error", "reason", "path"} with the status of its kind.
func JSONError(c *gin.Context, err error) {
	body := gin.H{"error": service.Code(err)}

	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		body["reason"] = svcErr.Reason
		if svcErr.Path != "" {
			body["path"] = svcErr.Path
		}
	} else {
		body["reason"] = "internal error"
	}

	c.JSON(StatusCode(err), body)
}
