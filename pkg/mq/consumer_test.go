package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"taskboard/pkg/util"
)

func TestDecideAck(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		redelivered bool
		want        ackAction
	}{
		{
			name: "success acks",
			err:  nil,
			want: actionAck,
		},
		{
			name: "permanent error dead-letters on first delivery",
			err:  util.ErrPermanent,
			want: actionDeadLetter,
		},
		{
			name: "wrapped permanent error dead-letters",
			err:  errors.Join(errors.New("bad payload"), util.ErrPermanent),
			want: actionDeadLetter,
		},
		{
			name: "retryable error requeues once",
			err:  errors.New("connection refused"),
			want: actionRequeue,
		},
		{
			name:        "retryable error dead-letters after redelivery",
			err:         errors.New("connection refused"),
			redelivered: true,
			want:        actionDeadLetter,
		},
		{
			name: "unknown error requeues on first delivery",
			err:  errors.New("something unexpected"),
			want: actionRequeue,
		},
		{
			name:        "unknown error dead-letters after redelivery",
			err:         errors.New("something unexpected"),
			redelivered: true,
			want:        actionDeadLetter,
		},
		{
			name: "cancellation during shutdown requeues",
			err:  context.Canceled,
			want: actionRequeue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, _ := decideAck(tt.err, tt.redelivered)
			assert.Equal(t, tt.want, action)
		})
	}
}
