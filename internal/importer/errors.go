package importer

import (
	"github.com/pkg/errors"

	"github.com/smartkubik/import-api/internal/models"
)

var (
	ErrUnsupportedEntityType = errors.New("unsupported entity type")
	ErrPreconditionFailed    = errors.New("precondition failed")
	ErrJobNotFound           = errors.New("import job not found")
	ErrRecordNotFound        = errors.New("record not found")
	ErrRollbackForbidden     = errors.New("rollback not permitted")
	ErrInvalidTransition     = models.ErrInvalidTransition
)

// Preconditionf wraps ErrPreconditionFailed with context.
func Preconditionf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrPreconditionFailed, format, args...)
}

// Forbiddenf wraps ErrRollbackForbidden with context.
func Forbiddenf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrRollbackForbidden, format, args...)
}
