// Package semver parses "<operation>@<version>" message keys and resolves version ranges
// against the operation versions a registry knows about.
package semver

import (
	"fmt"
	"regexp"
	"strings"
)

const logPrefix = "semver:parser"

// ParsedMessageRef holds the parsed components of a message key string.
type ParsedMessageRef struct {
	// Operation name (e.g., "get-context")
	Operation string
	// Version or range if specified (e.g., "2.0.0", "^2", "2"); empty string means no version
	Range string
	// Raw input string
	Raw string
}

var (
	operationNameRegex = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)
	majorOnlyRegex     = regexp.MustCompile(`^\d+$`)
	exactVersionRegex  = regexp.MustCompile(`^\d+\.\d+\.\d+(-[\w.]+)?(\+[\w.]+)?$`)
)

// ParseMessageRef parses a message key string.
//
// Supported formats:
//   - get-context            (no version)
//   - get-context@2          (major only)
//   - get-context@2.0.0      (exact version)
//   - get-context@^2.0.0     (caret range)
//   - get-context@>=1.0.0    (comparison range)
func ParseMessageRef(input string) (*ParsedMessageRef, error) {
	raw := strings.TrimSpace(input)

	opPart := raw
	rangeStr := ""
	if atIndex := strings.Index(raw, "@"); atIndex != -1 {
		opPart = raw[:atIndex]
		rangeStr = raw[atIndex+1:]
		if rangeStr == "" {
			return nil, fmt.Errorf("%s - empty version after @: %s", logPrefix, raw)
		}
	}

	if !ValidateOperationName(opPart) {
		return nil, fmt.Errorf("%s - invalid operation name: %q", logPrefix, raw)
	}

	return &ParsedMessageRef{
		Operation: opPart,
		Range:     rangeStr,
		Raw:       raw,
	}, nil
}

// IsMajorOnly checks if a range is a major-only specifier (e.g., "2").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// IsExactVersion checks if a range is an exact version (e.g., "2.0.0").
func IsExactVersion(rangeStr string) bool {
	return exactVersionRegex.MatchString(rangeStr)
}

// ExtractMajorFromRange extracts the major version if the range is major-only.
// Returns -1 if not a major-only range.
func ExtractMajorFromRange(rangeStr string) int {
	if !IsMajorOnly(rangeStr) {
		return -1
	}
	var major int
	fmt.Sscanf(rangeStr, "%d", &major)
	return major
}

// BuildMessageKey builds the registry key for an operation version ("get-context@2.0.0").
func BuildMessageKey(operation, version string) string {
	if version == "" {
		return operation
	}
	return operation + "@" + version
}

// ValidateOperationName validates an operation name (lowercase words joined by single hyphens).
func ValidateOperationName(name string) bool {
	return operationNameRegex.MatchString(name)
}
