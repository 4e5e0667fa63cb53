package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/planboard/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondDomainError 把领域错误映射到 HTTP 状态码
func respondDomainError(c *gin.Context, err error) {
	var (
		formatErr     *service.FormatError
		validationErr *service.ValidationError
		conflictErr   *service.ConflictError
		forbiddenErr  *service.ForbiddenError
		imageErr      *service.ImageProcessingError
	)

	switch {
	case errors.As(err, &forbiddenErr):
		respondError(c, http.StatusForbidden, forbiddenErr.Error())
	case errors.As(err, &conflictErr):
		respondError(c, http.StatusConflict, conflictErr.Error())
	case errors.As(err, &formatErr):
		respondError(c, http.StatusBadRequest, formatErr.Error())
	case errors.As(err, &validationErr):
		respondError(c, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &imageErr):
		respondError(c, http.StatusBadRequest, imageErr.Error())
	case errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrSubtaskNotFound),
		errors.Is(err, service.ErrDeviceNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// parseOptionalUint 解析可选的数字字段，空串返回 nil
func parseOptionalUint(raw string) (*uint, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid numeric value %q", raw)
	}
	value := uint(parsed)
	return &value, nil
}
