package facade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mydevhero/cacherepo/internal/config"
	"github.com/mydevhero/cacherepo/internal/driver/mysqladapter"
	"github.com/mydevhero/cacherepo/internal/driver/pgadapter"
)

func TestNewDriverAdapter_SelectsPostgres(t *testing.T) {
	a, err := newDriverAdapter(config.DatabaseConfig{Driver: config.DriverPostgres})
	require.NoError(t, err)
	assert.IsType(t, &pgadapter.Adapter{}, a)
}

func TestNewDriverAdapter_SelectsMySQLForMariaDBToo(t *testing.T) {
	a, err := newDriverAdapter(config.DatabaseConfig{Driver: config.DriverMySQL})
	require.NoError(t, err)
	assert.IsType(t, &mysqladapter.Adapter{}, a)
}

func TestNewDriverAdapter_RejectsUnrecognizedDriver(t *testing.T) {
	_, err := newDriverAdapter(config.DatabaseConfig{Driver: "mssql"})
	require.Error(t, err)
}

func TestNew_RejectsOutOfRangePoolConfig(t *testing.T) {
	cfg := config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverPostgres},
		Pool:     config.PoolConfig{MinSize: 0, MaxSize: 1},
	}
	_, err := New(nil, cfg, nil) //nolint:staticcheck // validated before any context/logger use
	require.Error(t, err)
}
