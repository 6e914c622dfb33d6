package backend

import (
	"context"

	"fundledger/internal/events"
	"fundledger/internal/ports"
)

// Backend is the storage a budget process reads from and imports into.
type Backend interface {
	ports.BudgetRepository
	ports.EnterpriseRepository
	ports.BudgetWriter
	ports.EnterpriseWriter
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Messaging is the notification plumbing of one process. Publisher delivers
// to the local bus and, when configured, to the broker. Consume is nil
// without a broker.
type Messaging struct {
	Bus       *events.Bus
	Publisher events.Publisher
	Consume   func(ctx context.Context, h events.Handler) error
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateMessaging(ctx context.Context, config Config) (*Messaging, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend seed directory
	DataDirectory string

	// AMQP; empty URL means in-process only
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
