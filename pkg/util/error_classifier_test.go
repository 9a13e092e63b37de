package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryableError(t *testing.T) {
	var jsonErr error
	jsonErr = json.Unmarshal([]byte("{"), &struct{}{})

	tests := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{name: "nil", err: nil, retryable: false, errType: ""},
		{name: "permanent sentinel", err: ErrPermanent, retryable: false, errType: "permanent"},
		{
			name:      "wrapped permanent sentinel",
			err:       fmt.Errorf("malformed payload: %w", ErrPermanent),
			retryable: false,
			errType:   "permanent",
		},
		{name: "json syntax error", err: jsonErr, retryable: false, errType: "json_decode_error"},
		{name: "no rows", err: pgx.ErrNoRows, retryable: false, errType: "row_not_found"},
		{
			name:      "duplicate key",
			err:       errors.New(`ERROR: duplicate key value violates unique constraint`),
			retryable: false,
			errType:   "duplicate_key",
		},
		{
			name:      "connection refused",
			err:       errors.New("dial tcp: connection refused"),
			retryable: true,
			errType:   "db_connection_error",
		},
		{name: "deadline exceeded", err: context.DeadlineExceeded, retryable: true, errType: "timeout"},
		{name: "context canceled", err: context.Canceled, retryable: true, errType: "context_canceled"},
		{name: "unknown", err: errors.New("boom"), retryable: true, errType: "unknown_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tt.err)
			assert.Equal(t, tt.retryable, retryable)
			assert.Equal(t, tt.errType, errType)
		})
	}
}
