package handler_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/handler"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
		name   string
	}{
		{apperror.ValidationFailed("correo", "bad"), http.StatusBadRequest, "validation_error"},
		{apperror.Unauthenticated("no"), http.StatusUnauthorized, "unauthenticated"},
		{apperror.Forbidden("no"), http.StatusForbidden, "forbidden"},
		{apperror.NotFound("project", "p1"), http.StatusNotFound, "not_found"},
		{apperror.Conflict("dup"), http.StatusConflict, "conflict"},
		{apperror.AppNotInstalled(), http.StatusBadRequest, "app_not_installed"},
		{apperror.MissingInstitutionalLink(), http.StatusBadRequest, "missing_institutional_link"},
		{apperror.MissingPersonalLink(), http.StatusBadRequest, "missing_personal_link"},
		{apperror.Provider("create failed", errors.New("422")), http.StatusBadGateway, "provider_error"},
		{fmt.Errorf("service/x: %w", apperror.NotFound("user", "u1")), http.StatusNotFound, "not_found"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, name := handler.StatusOf(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.name, name)
		})
	}
}
