package database

import "github.com/pkg/errors"

var (
	// ErrNotFound record not found
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists unique key already taken
	ErrAlreadyExists = errors.New("record already exists")

	// ErrUnsupportedDBType unsupported database type
	ErrUnsupportedDBType = errors.New("unsupported database type")

	// ErrDatabaseNotInitialized database is not initialized
	ErrDatabaseNotInitialized = errors.New("database not initialized")
)
