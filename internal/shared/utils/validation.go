// Package utils holds input validation shared across the untrusted surfaces:
// manifests arrive from extensions, policy files from operators, and both are
// parsed before any session exists to attribute abuse to.
package utils

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Size and length limits for untrusted inputs.
const (
	// MaxManifestSize bounds the YAML blob an extension may send in hello.
	MaxManifestSize = 64 * 1024
	MaxNameLength   = 256
	MaxIDLength     = 128
	// MaxDomainCount bounds a single permission's domain list.
	MaxDomainCount = 64
)

var (
	// extensionIDPattern: lowercase identifier, optionally prefixed, as
	// produced by extension stores and the id package.
	extensionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)
	versionPattern     = regexp.MustCompile(`^\d+(\.\d+){0,3}([.-][a-zA-Z0-9]+)*$`)
)

// CheckManifestSize rejects oversized manifest payloads before parsing.
func CheckManifestSize(data []byte) error {
	if len(data) > MaxManifestSize {
		return fmt.Errorf("manifest exceeds %d bytes", MaxManifestSize)
	}
	if !utf8.Valid(data) {
		return fmt.Errorf("manifest is not valid UTF-8")
	}
	return nil
}

// ValidateExtensionID checks shape and length of a declared extension ID.
func ValidateExtensionID(id string) error {
	if id == "" {
		return fmt.Errorf("extension_id is required")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("extension_id exceeds %d characters", MaxIDLength)
	}
	if !extensionIDPattern.MatchString(id) {
		return fmt.Errorf("extension_id %q contains invalid characters", id)
	}
	return nil
}

// ValidateName bounds a display name.
func ValidateName(name string) error {
	if len(name) > MaxNameLength {
		return fmt.Errorf("name exceeds %d characters", MaxNameLength)
	}
	return nil
}

// ValidateVersion checks a declared version string. Empty is allowed; a
// manifest without a version is sloppy, not dangerous.
func ValidateVersion(v string) error {
	if v == "" {
		return nil
	}
	if !versionPattern.MatchString(v) {
		return fmt.Errorf("version %q is not a valid version string", v)
	}
	return nil
}
