package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryLimitMB(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 512},
		{256, 256},
		{600, 512},
		{4096, 3072},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MemoryLimitMB(tt.total), "total=%d", tt.total)
	}
}
