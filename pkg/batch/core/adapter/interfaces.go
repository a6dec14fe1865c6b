package adapter

// ResourceConnection represents a generic connection to any resource (e.g., database, storage).
type ResourceConnection interface {
	// Close closes the resource connection.
	Close() error
	// Type returns the type of the resource (e.g., "mysql", "gcs").
	Type() string
	// Name returns the connection name (e.g., "workload", "archive").
	Name() string
}
