package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice/report.pdf", "alice/report.pdf"},
		{"/alice/report.pdf/", "alice/report.pdf"},
		{`alice\sub\report.pdf`, "alice/sub/report.pdf"},
		{"alice//sub///report.pdf", "alice/sub/report.pdf"},
		{"  alice/report.pdf ", "alice/report.pdf"},
	}
	for _, tt := range tests {
		got, err := NormalizePath(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNormalizePathRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"/",
		"report.pdf",
		"alice/../bob/report.pdf",
		"alice/./report.pdf",
		"alice/re\x00port.pdf",
		"alice/" + strings.Repeat("a", MaxPathLength),
	} {
		_, err := NormalizePath(in)
		assert.ErrorIs(t, err, ErrValidation, "%q", in)
	}
}

func TestNormalizeFolder(t *testing.T) {
	got, err := NormalizeFolder("alice/")
	require.NoError(t, err)
	assert.Equal(t, "alice", got)

	_, err = NormalizeFolder("..")
	assert.ErrorIs(t, err, ErrValidation)
}
