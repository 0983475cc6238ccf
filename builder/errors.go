package builder

import (
	"errors"
	"fmt"
)

// DuplicateTestError reports two test declarations sharing an identity key
// (suite path + title). It is raised during build, before any execution, and
// aborts the entire run; a collision is never retried.
type DuplicateTestError struct {
	Title string   // the shared identity key
	Files []string // declaring files in encounter order; one entry for a same-file duplicate
}

func (e *DuplicateTestError) Error() string {
	if len(e.Files) == 1 {
		return fmt.Sprintf("duplicate test %q declared more than once in %s", e.Title, e.Files[0])
	}
	return fmt.Sprintf("duplicate test %q declared in %s and %s", e.Title, e.Files[0], e.Files[1])
}

// IsDuplicateTestError reports whether err is or wraps a DuplicateTestError.
func IsDuplicateTestError(err error) bool {
	var dup *DuplicateTestError
	return err != nil && errors.As(err, &dup)
}
