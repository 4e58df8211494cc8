package storage

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

func isUniqueConstraintError(err error) bool {
	var x sqlite3.Error
	if !errors.As(err, &x) {
		return false
	}
	return x.ExtendedCode == sqlite3.ErrConstraintUnique || x.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
