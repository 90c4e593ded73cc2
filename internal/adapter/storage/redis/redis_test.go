package redis

import (
	"testing"

	"cross-border-escrow/config"

	"github.com/stretchr/testify/assert"
)

func TestRedisAddr(t *testing.T) {
	cfg := config.RedisConfig{Host: "cache.escrow.internal", Port: 6390}
	assert.Equal(t, "cache.escrow.internal:6390", cfg.Addr())
}

func TestRedisAddrDefaults(t *testing.T) {
	cfg := config.RedisConfig{Host: "localhost", Port: 6379}
	assert.Equal(t, "localhost:6379", cfg.Addr())
	assert.Empty(t, cfg.Password)
	assert.Zero(t, cfg.DB)
}
