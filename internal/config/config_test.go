package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolConfig_Validate_RejectsMinSizeBelowOne(t *testing.T) {
	cfg := PoolConfig{MinSize: 0, MaxSize: 10}
	assert.ErrorIs(t, cfg.Validate(), errMinSizeTooSmall)
}

func TestPoolConfig_Validate_RejectsMinGreaterThanMax(t *testing.T) {
	cfg := PoolConfig{MinSize: 20, MaxSize: 10}
	assert.ErrorIs(t, cfg.Validate(), errMinGreaterThanMax)
}

func TestPoolConfig_Validate_AcceptsValidBounds(t *testing.T) {
	cfg := PoolConfig{MinSize: 2, MaxSize: 10}
	assert.NoError(t, cfg.Validate())
}

func TestPoolConfig_Validate_AcceptsEqualMinMax(t *testing.T) {
	cfg := PoolConfig{MinSize: 5, MaxSize: 5}
	assert.NoError(t, cfg.Validate())
}

func TestQueryConfig_TTLFor_FallsBackWhenUnset(t *testing.T) {
	q := QueryConfig{TTL: map[string]time.Duration{"echo": 2 * time.Minute}}

	assert.Equal(t, 2*time.Minute, q.TTLFor("echo", time.Hour))
	assert.Equal(t, time.Hour, q.TTLFor("label", time.Hour))
}

func TestConfig_Validate_DelegatesToPool(t *testing.T) {
	cfg := Config{Pool: PoolConfig{MinSize: 0, MaxSize: 1}}
	assert.Error(t, cfg.Validate())

	cfg.Pool = PoolConfig{MinSize: 1, MaxSize: 1}
	assert.NoError(t, cfg.Validate())
}
