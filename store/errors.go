package store

import "github.com/cockroachdb/errors"

var (
	ErrNotFound          = errors.New("store: record not found")
	ErrPartitionNotFound = errors.New("store: partition not found")
	ErrPartitionNotEmpty = errors.New("store: partition is not empty")
	ErrIndexNotFound     = errors.New("store: index not found")
	ErrIndexExists       = errors.New("store: index already exists")
	ErrUniqueViolation   = errors.New("store: duplicate key in unique index")

	ErrNotRegistered  = errors.New("store: backend is not registered")
	ErrNotPersistent  = errors.New("store: backend is not persistent")
	ErrNotSupported   = errors.New("store: operation is not supported")
	ErrDatabaseExists = errors.New("store: cannot init; database already exists")
	ErrNotInitialized = errors.New("store: not initialized")
)
