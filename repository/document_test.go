package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tnqbao/gau-document-gateway/service"
	"gorm.io/gorm"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice/", "alice/"},
		{"al_ce/", `al\_ce/`},
		{"100%/", `100\%/`},
		{`a\b/`, `a\\b/`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeLike(tt.in))
	}
}

func TestNotFoundMapsGormError(t *testing.T) {
	assert.ErrorIs(t, notFound(gorm.ErrRecordNotFound), service.ErrRecordNotFound)

	other := errors.New("connection reset")
	assert.Equal(t, other, notFound(other))
}
