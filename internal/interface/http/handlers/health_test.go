package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCompositeHealthChecker_NoChecks(t *testing.T) {
	status := NewCompositeHealthChecker("test").Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "test", status.Version)
}

func TestCompositeHealthChecker_ReportsFailures(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddCheck("postgres", NewPingCheck(pingFunc(func(context.Context) error { return nil })))
	c.AddCheck("redis", NewPingCheck(pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })))

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.True(t, status.Checks["postgres"].Healthy)
	assert.False(t, status.Checks["redis"].Healthy)
	assert.Equal(t, "dial tcp: refused", status.Checks["redis"].Message)
	assert.Contains(t, status.Message, "redis")
}

func TestCompositeHealthChecker_TimesOutSlowChecks(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.SetTimeout(20 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Checks["slow"].Message, "deadline")
}
