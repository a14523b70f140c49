package validators

import (
	"errors"
	"strings"
)

var (
	ErrFileNameEmpty     = errors.New("no file name provided")
	ErrFileNameTooLong   = errors.New("file name is too long")
	ErrFileNameTraversal = errors.New("file name must not contain path separators or '..'")
)

const maxFileNameSize = 255

// FilenameValidator rejects anything that could escape a user's storage
// namespace when joined onto it. Names are taken as-is otherwise, the
// caller decides about overwrites.
func FilenameValidator(name string) error {
	if name == "" || name == "." {
		return ErrFileNameEmpty
	}

	if len(name) > maxFileNameSize {
		return ErrFileNameTooLong
	}

	if strings.ContainsAny(name, `/\`) || name == ".." {
		return ErrFileNameTraversal
	}

	return nil
}
