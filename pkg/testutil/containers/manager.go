//go:build integration

package containers

import (
	"sync"
	"testing"
)

// Manager shares one container per backend across the suites of a test binary.
// Ryuk reaps the containers when the binary exits.
type Manager struct {
	pgOnce    sync.Once
	redisOnce sync.Once
	postgres  *PostgresContainer
	redis     *RedisContainer
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	managerOnce.Do(func() { manager = &Manager{} })
	return manager
}

// GetPostgres starts PostgreSQL on first use.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.pgOnce.Do(func() { m.postgres = NewPostgresContainer(t) })
	if m.postgres == nil {
		t.Fatal("postgres container failed to start earlier")
	}
	return m.postgres
}

// GetRedis starts Redis on first use.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.redisOnce.Do(func() { m.redis = NewRedisContainer(t) })
	if m.redis == nil {
		t.Fatal("redis container failed to start earlier")
	}
	return m.redis
}
