//go:build integration

// Package containers starts the backing services integration tests run
// against. Each container is started at most once per test binary and
// shared by every suite that asks for it.
package containers

import (
	"sync"
	"testing"
)

type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	redis    *RedisContainer
	kafka    *KafkaContainer
}

var shared = &Manager{}

func GetManager() *Manager {
	return shared
}

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return lazy(t, &m.mu, &m.postgres, NewPostgresContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return lazy(t, &m.mu, &m.redis, NewRedisContainer)
}

// GetKafka returns a Redpanda broker speaking the Kafka protocol.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return lazy(t, &m.mu, &m.kafka, NewKafkaContainer)
}

// lazy starts the container in slot on first use. A failed start fails t
// and leaves the slot empty so a later suite retries.
func lazy[C any](t *testing.T, mu *sync.Mutex, slot **C, start func(*testing.T) *C) *C {
	t.Helper()
	mu.Lock()
	defer mu.Unlock()
	if *slot == nil {
		*slot = start(t)
	}
	return *slot
}
