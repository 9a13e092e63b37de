package mq

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPublisherConcurrentPublishWhileDisconnected(t *testing.T) {
	// the URI never parses, so every publish attempt goes down the
	// re-dial path; the dispatcher and HTTP handlers hit this
	// concurrently in production
	p := NewPublisher("not-a-uri", zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				err := p.PublishWithContext(context.Background(), "task.created", map[string]string{"n": "1"})
				assert.Error(t, err)
				_ = p.IsConnected()
			}
		}()
	}
	wg.Wait()

	assert.False(t, p.IsConnected())
}

func TestPublisherCloseWithoutConnect(t *testing.T) {
	p := NewPublisher("not-a-uri", zap.NewNop())
	assert.NotPanics(t, p.Close)
	assert.False(t, p.IsConnected())
}
