package domain

/*
censeek — domain discovery toolkit for the Censys Search API
Copyright (C) 2025  Pepijn van der Stap <censeek@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

/*
Package domain provides the Domain value type used throughout censeek.

A Domain is a normalized, validated hostname. Normalization lowercases the
name and strips trailing dots, so "EXAMPLE.COM." and "example.com" compare
equal. Wildcard names ("*.example.com") are first-class: the wildcard prefix
is recognized and the base domain can be extracted and validated on its own.

Domains are constructed only through Parse/ParseWildcard and are immutable;
equality and map keying work on the normalized name.
*/

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxNameLength is the maximum total length of a domain name.
	MaxNameLength = 253
	// MaxLabelLength is the maximum length of a single DNS label.
	MaxLabelLength = 63
	// WildcardPrefix marks a wildcard domain name.
	WildcardPrefix = "*."
)

// hostnamePattern is the label-based grammar for regular multi-label names.
// Single-label names (other than "localhost") are rejected on purpose.
var hostnamePattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z0-9][a-z0-9-]{0,61}[a-z0-9]$`)

// reservedSuffixes are test/local namespaces exempt from the grammar check.
var reservedSuffixes = []string{".local", ".test", ".example", ".invalid"}

// unsafeChars are characters that never belong in a hostname regardless of
// which grammar branch applies.
const unsafeChars = " \t\r\n/:@\"'"

// Domain is a normalized domain name. The zero value is invalid; use Parse.
type Domain struct {
	name string
}

// InvalidDomainError reports why a string could not become a Domain.
type InvalidDomainError struct {
	Input  string
	Issues []string
}

func (e *InvalidDomainError) Error() string {
	return fmt.Sprintf("invalid domain %q: %s", e.Input, strings.Join(e.Issues, "; "))
}

// Normalize lowercases a name and strips trailing dots. Idempotent.
func Normalize(name string) string {
	return strings.TrimRight(strings.ToLower(name), ".")
}

// NormalizeWildcard canonicalizes informal wildcard notations to "*.domain":
// a leading dot (".example.com"), a leading percent ("%example.com",
// SQL-LIKE style), or the canonical form itself. Anything else passes through
// unchanged apart from the usual lowercase/trailing-dot normalization.
func NormalizeWildcard(name string) string {
	name = Normalize(name)
	switch {
	case strings.HasPrefix(name, WildcardPrefix):
		return name
	case strings.HasPrefix(name, "."):
		return "*" + name
	case strings.HasPrefix(name, "%"):
		return WildcardPrefix + name[1:]
	}
	return name
}

// Parse normalizes and validates a name, returning the Domain value.
// Failures are reported as *InvalidDomainError.
func Parse(name string) (Domain, error) {
	normalized := Normalize(name)
	if issues := validate(normalized); len(issues) > 0 {
		return Domain{}, &InvalidDomainError{Input: name, Issues: issues}
	}
	return Domain{name: normalized}, nil
}

// ParseWildcard is Parse with wildcard canonicalization applied first, so
// ".example.com" and "%example.com" both become "*.example.com".
func ParseWildcard(name string) (Domain, error) {
	normalized := NormalizeWildcard(name)
	if issues := validate(normalized); len(issues) > 0 {
		return Domain{}, &InvalidDomainError{Input: name, Issues: issues}
	}
	return Domain{name: normalized}, nil
}

// ValidateString runs the same checks as Parse and returns human-readable
// issue strings without constructing a Domain. Useful for bulk pre-validation.
func ValidateString(name string) []string {
	return validate(Normalize(name))
}

// validate checks an already-normalized name.
func validate(name string) []string {
	var issues []string

	if name == "" {
		return []string{"domain name cannot be empty"}
	}
	if len(name) > MaxNameLength {
		issues = append(issues, fmt.Sprintf("domain name is too long (max %d characters)", MaxNameLength))
	}
	if strings.ContainsAny(name, unsafeChars) || containsControl(name) {
		issues = append(issues, fmt.Sprintf("domain name contains unsafe characters: %s", name))
		return issues
	}
	if strings.Contains(name, "..") {
		issues = append(issues, fmt.Sprintf("domain name has consecutive dots: %s", name))
		return issues
	}

	if strings.HasPrefix(name, WildcardPrefix) {
		base := name[len(WildcardPrefix):]
		if base == "" || len(validate(base)) > 0 {
			issues = append(issues, fmt.Sprintf("invalid wildcard domain format: %s", name))
		}
		return issues
	}

	for _, label := range strings.Split(name, ".") {
		if len(label) > MaxLabelLength {
			issues = append(issues, fmt.Sprintf("domain label is too long (max %d characters): %s", MaxLabelLength, label))
			return issues
		}
	}

	if !hostnamePattern.MatchString(name) && name != "localhost" && !hasReservedSuffix(name) {
		issues = append(issues, fmt.Sprintf("domain name has invalid format: %s", name))
	}
	return issues
}

func containsControl(name string) bool {
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}

func hasReservedSuffix(name string) bool {
	for _, suffix := range reservedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Name returns the normalized name.
func (d Domain) Name() string { return d.name }

func (d Domain) String() string { return d.name }

// IsZero reports whether d is the invalid zero value.
func (d Domain) IsZero() bool { return d.name == "" }

// IsWildcard reports whether the name starts with "*.".
func (d Domain) IsWildcard() bool { return strings.HasPrefix(d.name, WildcardPrefix) }

// Base returns the domain obtained by stripping the wildcard prefix.
// The second return value is false for non-wildcard domains and for
// degenerate wildcards whose base does not validate on its own.
func (d Domain) Base() (Domain, bool) {
	if !d.IsWildcard() {
		return Domain{}, false
	}
	base, err := Parse(d.name[len(WildcardPrefix):])
	if err != nil {
		return Domain{}, false
	}
	return base, true
}
