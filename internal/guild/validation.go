// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package guild

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength bounds user, guild, role, and channel names.
const MaxNameLength = 100

// ValidationError represents an input validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateName checks that a name is valid.
// Names must be non-empty, valid UTF-8, no control characters, and within length limit.
func ValidateName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if !utf8.ValidString(name) {
		return &ValidationError{Field: "name", Message: "must be valid UTF-8"}
	}
	if len(name) > MaxNameLength {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("exceeds maximum length of %d", MaxNameLength)}
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return &ValidationError{Field: "name", Message: "cannot contain control characters"}
		}
	}
	return nil
}
