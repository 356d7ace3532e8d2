// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for identifiers that end
// up in storage keys and log lines.
//
// Session and run identifiers arrive from clients in URL path segments
// and JSON bodies, then get used as key prefixes in the run archive and
// as structured log fields. Validating them here keeps a hostile id
// from colliding with another session's key range or smuggling control
// characters into the logs.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierPattern matches session and run identifiers.
// Allows: letters, digits, underscores, dots, hyphens. UUIDs and
// client-minted slugs both fit. Max length: 128 characters.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.\-]{0,127}$`)

// ValidateID validates a session or run identifier.
//
// Valid identifiers:
//   - 1-128 characters
//   - Letters, digits, underscores
//   - Dots and hyphens after the first character
//
// The colon is deliberately excluded: archive keys join segments with
// ":" and an embedded colon would let one session's index bleed into
// another's prefix scan.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid identifier: %q (must be 1-128 alphanumeric chars, underscores, dots, or hyphens)", id)
	}

	return nil
}

// ValidateIDs validates multiple identifiers, reporting every invalid
// one in a single error.
func ValidateIDs(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateID(id); err != nil {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid identifiers: %v", invalid)
	}
	return nil
}

// SanitizeID trims surrounding whitespace and validates the result.
// Returns the trimmed identifier if valid.
func SanitizeID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if err := ValidateID(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
