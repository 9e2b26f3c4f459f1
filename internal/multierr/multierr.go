// Package multierr provides utilities for error chaining.
package multierr

import (
	"errors"
	"strings"
)

// Combine merges provided errors, skipping nil values.
// Returns nil if every error is nil, and the error itself if it's the only non-nil one.
func Combine(errs ...error) error {
	var combined = make(list, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			combined = append(combined, err)
		}
	}
	switch len(combined) {
	case 0:
		return nil
	case 1:
		return combined[0]
	default:
		return combined
	}
}

const errSeparator = "; "

type list []error

func (l list) Error() string {
	var str = &strings.Builder{}
	for i, err := range l {
		if i > 0 {
			_, _ = str.WriteString(errSeparator)
		}
		_, _ = str.WriteString(err.Error())
	}
	return str.String()
}

func (l list) Unwrap() []error {
	return l
}

// Is reports whether any of the combined errors matches target.
func (l list) Is(target error) bool {
	for _, err := range l {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
