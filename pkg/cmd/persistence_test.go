package cmd

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The binaries rely on the postgresql package registering the driver as a
// side effect of being imported; nothing else in the production import
// graph does.
func TestPostgresDriverRegistered(t *testing.T) {
	assert.Contains(t, sql.Drivers(), "postgres")
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		url      string
		provider string
	}{
		{"postgres://localhost/hiveplane", "postgresql"},
		{"postgresql://localhost/hiveplane", "postgresql"},
		{"file://./data", "file"},
		{"./data", "file"},
		{"mysql://localhost/hiveplane", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.provider, parseProvider(tt.url))
		})
	}
}
