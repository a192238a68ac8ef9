package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"pair-collection-backend/internal/services"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrInvalidCode, http.StatusBadRequest},
		{services.ErrURLRequired, http.StatusBadRequest},
		{services.ErrBadMode, http.StatusBadRequest},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrCodeNotFound, http.StatusNotFound},
		{services.ErrAlreadyPaired, http.StatusConflict},
		{services.ErrCodeExpired, http.StatusConflict},
		{services.ErrOwnCode, http.StatusConflict},
		{services.ErrNoCouple, http.StatusConflict},
		{services.ErrCodeGeneration, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
		// wrapped errors still map through errors.Is
		{fmt.Errorf("context: %w", services.ErrCodeUsed), http.StatusConflict},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForError(tt.err), "error %q", tt.err)
	}
}
