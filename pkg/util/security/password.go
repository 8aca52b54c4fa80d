// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

// Package security generates the random passwords used for the SPICE
// display-access secret (spec.md §4.8).
package security

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
)

// GeneratePassword returns a 16-byte, URL-safe base64-encoded random
// password for the display secret. The console UI must be able to read
// it back in plaintext, so it is never hashed.
func GeneratePassword() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generating display password")
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
