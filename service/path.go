package service

import (
	"fmt"
	"strings"
)

const MaxPathLength = 1024

// NormalizePath cleans a document path and checks that it has the
// "<owner_id>/<...>/<filename>" shape.
func NormalizePath(raw string) (string, error) {
	p, err := cleanPath(raw)
	if err != nil {
		return "", err
	}
	if !strings.Contains(p, "/") {
		return "", newError(ErrValidation, raw, "path must look like <owner_id>/<filename>", nil)
	}
	return p, nil
}

// NormalizeFolder cleans a folder path. A bare owner segment is accepted.
func NormalizeFolder(raw string) (string, error) {
	return cleanPath(raw)
}

func cleanPath(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(p, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}

	if p == "" {
		return "", newError(ErrValidation, raw, "path is required", nil)
	}
	if len(p) > MaxPathLength {
		return "", newError(ErrValidation, raw, fmt.Sprintf("path exceeds %d bytes", MaxPathLength), nil)
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == "." || segment == ".." {
			return "", newError(ErrValidation, raw, "path cannot contain '.' or '..' segments", nil)
		}
		if strings.ContainsAny(segment, "\x00\r\n") {
			return "", newError(ErrValidation, raw, "path contains invalid characters", nil)
		}
	}
	return p, nil
}
