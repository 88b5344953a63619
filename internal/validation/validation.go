// Package validation provides centralized input validation for object
// store locations and dataset column names.
package validation

import (
	"fmt"
	"net"
	"strings"
	"unicode"
)

// =============================================================================
// Name Validation
// =============================================================================

// NameRules defines the validation rules for names.
type NameRules struct {
	MinLength    int
	MaxLength    int
	AllowDots    bool
	AllowHyphens bool
	AllowUnders  bool
	AllowSpaces  bool
}

// ColumnRules returns the rules for configured column names.
func ColumnRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    255,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
		AllowSpaces:  true,
	}
}

// ClusterNameRules returns the rules for cluster endpoint names.
func ClusterNameRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    63,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// ValidateName validates a name according to the given rules.
func ValidateName(name string, rules NameRules) error {
	if len(name) < rules.MinLength {
		return fmt.Errorf("name too short: minimum %d characters required", rules.MinLength)
	}
	if len(name) > rules.MaxLength {
		return fmt.Errorf("name too long: maximum %d characters allowed", rules.MaxLength)
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("name cannot start or end with whitespace")
	}

	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("name cannot contain control characters at position %d", i)
		}
		if !isAllowedNameChar(r, rules) {
			return fmt.Errorf("invalid character '%c' at position %d", r, i)
		}
	}

	return nil
}

func isAllowedNameChar(r rune, rules NameRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.':
		return rules.AllowDots
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	case ' ':
		return rules.AllowSpaces
	}
	return false
}

// ValidateColumnName validates a column name with ColumnRules.
func ValidateColumnName(name string) error {
	return ValidateName(name, ColumnRules())
}

// =============================================================================
// Bucket Validation
// =============================================================================

// ValidateBucketName checks the S3 bucket naming rules: 3-63 characters,
// lowercase letters, digits, dots and hyphens, starting and ending with a
// letter or digit, no adjacent dots and not formatted as an IP address.
func ValidateBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("bucket name must be 3-63 characters, got %d", len(name))
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '.' || r == '-':
			if i == 0 || i == len(name)-1 {
				return fmt.Errorf("bucket name must start and end with a letter or digit")
			}
		default:
			return fmt.Errorf("invalid character '%c' in bucket name at position %d", r, i)
		}
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("bucket name cannot contain '..'")
	}
	if net.ParseIP(name) != nil {
		return fmt.Errorf("bucket name cannot be an IP address")
	}
	return nil
}

// =============================================================================
// Key Validation
// =============================================================================

// MaxKeyLength is the longest object key S3 accepts, in bytes.
const MaxKeyLength = 1024

// ValidateKey validates an object key. Keys are relative: no leading
// slash, no empty, "." or ".." segments and no control characters.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("key too long: maximum %d bytes", MaxKeyLength)
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("key cannot start with '/'")
	}
	for i, c := range key {
		if c < 32 || c == 127 {
			return fmt.Errorf("key cannot contain control characters at position %d", i)
		}
	}
	for _, seg := range strings.Split(key, "/") {
		switch seg {
		case "":
			return fmt.Errorf("key %q has an empty segment", key)
		case ".", "..":
			return fmt.Errorf("key %q cannot contain '%s' segments", key, seg)
		}
	}
	return nil
}

// ValidatePrefix validates an artifact prefix. A single trailing slash is
// allowed.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("prefix cannot be empty")
	}
	return ValidateKey(strings.TrimSuffix(prefix, "/"))
}

// =============================================================================
// Object Reference Validation
// =============================================================================

// ObjectRef represents a parsed object reference.
type ObjectRef struct {
	Bucket string
	Key    string
}

// ParseObjectRef parses an "s3://bucket/key" reference string.
func ParseObjectRef(ref string) (*ObjectRef, error) {
	if ref == "" {
		return nil, fmt.Errorf("empty object reference")
	}

	rest, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		return nil, fmt.Errorf("invalid object reference format: expected 's3://bucket/key', got '%s'", ref)
	}

	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || key == "" {
		return nil, fmt.Errorf("invalid object reference: empty key in '%s'", ref)
	}
	if err := ValidateBucketName(bucket); err != nil {
		return nil, fmt.Errorf("invalid bucket in object reference: %w", err)
	}
	if err := ValidateKey(key); err != nil {
		return nil, fmt.Errorf("invalid key in object reference: %w", err)
	}

	return &ObjectRef{Bucket: bucket, Key: key}, nil
}

// String returns the string representation of the object reference.
func (r *ObjectRef) String() string {
	return "s3://" + r.Bucket + "/" + r.Key
}
