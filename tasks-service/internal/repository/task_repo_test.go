package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total int
		size  int
		want  int
	}{
		{total: 0, size: 10, want: 0},
		{total: 1, size: 10, want: 1},
		{total: 10, size: 10, want: 1},
		{total: 11, size: 10, want: 2},
		{total: 15, size: 10, want: 2},
		{total: 30, size: 10, want: 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.total, tt.size), "total=%d size=%d", tt.total, tt.size)
	}
}
