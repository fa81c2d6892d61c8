package dao

import (
	"mini-app-service/common"
	"mini-app-service/database"

	"github.com/pkg/errors"
)

// storageErr maps adapter errors onto the service error taxonomy.
// database.ErrAlreadyExists is kept so callers can fall back to update.
func storageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return common.ErrNotFound
	case errors.Is(err, database.ErrAlreadyExists):
		return err
	}
	return errors.Wrap(common.ErrStorageUnavailable, err.Error())
}

// mutationErr distinguishes a mutation's own error, which must surface unchanged.
type mutationErr struct{ err error }

func (m *mutationErr) Error() string { return m.err.Error() }

func unwrapMutation(err error) error {
	var m *mutationErr
	if errors.As(err, &m) {
		return m.err
	}
	return storageErr(err)
}

var errNotInitialized = errors.Wrap(common.ErrStorageUnavailable, "database not initialized")
