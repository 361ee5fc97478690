package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every cleaning configuration error
var ErrInvalidConfig = errors.New("invalid cleaning config")

// CaseType selects the case transformation applied to a label
type CaseType string

const (
	CasePreserve CaseType = "preserve"
	CaseLower    CaseType = "lower"
	CaseUpper    CaseType = "upper"
	CaseSnake    CaseType = "snake"
	CaseCamel    CaseType = "camel"
	CasePascal   CaseType = "pascal"
	CaseTitle    CaseType = "title"
	CaseSentence CaseType = "sentence"
)

// ParseCaseType converts a textual case option into a CaseType
func ParseCaseType(s string) (CaseType, error) {
	switch ct := CaseType(strings.ToLower(strings.TrimSpace(s))); ct {
	case CasePreserve, CaseLower, CaseUpper, CaseSnake,
		CaseCamel, CasePascal, CaseTitle, CaseSentence:
		return ct, nil
	default:
		return "", fmt.Errorf("%w: unknown case type %q", ErrInvalidConfig, s)
	}
}

// UnderscoreStrip selects which edge underscores are removed from a label
type UnderscoreStrip string

const (
	StripNone  UnderscoreStrip = "none"
	StripLeft  UnderscoreStrip = "left"
	StripRight UnderscoreStrip = "right"
	StripBoth  UnderscoreStrip = "both"
)

// ParseUnderscoreStrip accepts none/left/right/both plus the short
// aliases l, r and true (both) and the empty string (none)
func ParseUnderscoreStrip(s string) (UnderscoreStrip, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "false":
		return StripNone, nil
	case "left", "l":
		return StripLeft, nil
	case "right", "r":
		return StripRight, nil
	case "both", "true":
		return StripBoth, nil
	default:
		return "", fmt.Errorf("%w: unknown strip_underscores value %q", ErrInvalidConfig, s)
	}
}

// CleaningConfig controls the label cleaning pipeline
type CleaningConfig struct {
	StripUnderscores UnderscoreStrip `yaml:"strip_underscores"`
	CaseType         CaseType        `yaml:"case_type"`
	RemoveSpecial    bool            `yaml:"remove_special"`
	StripAccents     bool            `yaml:"strip_accents"`
	TruncateLimit    int             `yaml:"truncate_limit"` // 0 disables truncation
}

// DefaultCleaningConfig returns the configuration used when no options are given
func DefaultCleaningConfig() CleaningConfig {
	return CleaningConfig{
		StripUnderscores: StripNone,
		CaseType:         CaseLower,
	}
}

// Validate ensures every field holds a known value
func (c CleaningConfig) Validate() error {
	if _, err := ParseCaseType(string(c.CaseType)); err != nil {
		return err
	}
	if _, err := ParseUnderscoreStrip(string(c.StripUnderscores)); err != nil {
		return err
	}
	if c.TruncateLimit < 0 {
		return fmt.Errorf("%w: truncate limit must not be negative, got %d", ErrInvalidConfig, c.TruncateLimit)
	}
	return nil
}

// Normalized returns a copy with aliases resolved to their canonical values.
// Call Validate first; unknown values are returned unchanged.
func (c CleaningConfig) Normalized() CleaningConfig {
	if ct, err := ParseCaseType(string(c.CaseType)); err == nil {
		c.CaseType = ct
	}
	if us, err := ParseUnderscoreStrip(string(c.StripUnderscores)); err == nil {
		c.StripUnderscores = us
	}
	return c
}

// Cleaning operation kinds recorded in the audit table
const (
	OperationColumnRename = "column_rename"
	OperationValueClean   = "value_clean"
)

// CleaningOperation represents a single data cleaning operation
type CleaningOperation struct {
	SchemaName        string      // Database schema name
	TableName         string      // Table name
	ColumnName        string      // Column that was cleaned (original name for renames)
	OriginalValue     interface{} // Original value (may be nil)
	NewValue          string      // New value after cleaning
	RowIdentifier     string      // Row ID, or the run ID for column-level operations
	CleaningOperation string      // Type of cleaning performed (e.g., "column_rename")
	CleaningReason    string      // Reason for cleaning (e.g., "case_type=snake")
	CleanedAt         time.Time   // When the cleaning occurred (set by database)
}
