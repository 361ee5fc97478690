package cleaner

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/David-Botos/column-janitor/pkg/model"
)

// NameCleaner normalizes column labels and cell values according to a
// validated CleaningConfig. It holds no mutable state and is safe for
// concurrent use.
type NameCleaner struct {
	cfg model.CleaningConfig
}

// NewNameCleaner validates cfg and returns a cleaner bound to it
func NewNameCleaner(cfg model.CleaningConfig) (*NameCleaner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &NameCleaner{cfg: cfg.Normalized()}, nil
}

// Clean runs a single label through cfg. It only fails when cfg is invalid.
func Clean(label string, cfg model.CleaningConfig) (string, error) {
	nc, err := NewNameCleaner(cfg)
	if err != nil {
		return "", err
	}
	return nc.Clean(label), nil
}

// Config returns the normalized configuration of the cleaner
func (c *NameCleaner) Config() model.CleaningConfig {
	return c.cfg
}

// Clean returns the cleaned form of label
func (c *NameCleaner) Clean(label string) string {
	s := label
	if c.cfg.StripAccents {
		s = stripAccents(s)
	}
	s = normalizeSeparators(s)
	if c.cfg.RemoveSpecial {
		s = removeSpecial(s)
	}
	s = applyCase(s, c.cfg.CaseType)
	s = collapseUnderscores(s)
	s = stripUnderscores(s, c.cfg.StripUnderscores)
	if c.cfg.TruncateLimit > 0 {
		s = truncate(s, c.cfg.TruncateLimit)
		// a cut may expose an edge underscore
		s = stripUnderscores(s, c.cfg.StripUnderscores)
	}
	return s
}

// CleanValues cleans each value independently. Unlike CleanAll it does not
// make the results unique.
func (c *NameCleaner) CleanValues(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = c.Clean(v)
	}
	return out
}

// Reason describes the configuration for audit records
func (c *NameCleaner) Reason() string {
	return fmt.Sprintf("case_type=%s strip_underscores=%s remove_special=%t strip_accents=%t truncate_limit=%d",
		c.cfg.CaseType, c.cfg.StripUnderscores, c.cfg.RemoveSpecial, c.cfg.StripAccents, c.cfg.TruncateLimit)
}

func stripAccents(s string) string {
	// transform.Chain keeps internal buffers, so it is built per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isSeparator(r rune) bool {
	switch r {
	case '/', ':', ',', '?', '(', ')', '.', '-':
		return true
	}
	return unicode.IsSpace(r)
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’'
}

// normalizeSeparators trims surrounding whitespace, turns every run of
// separator characters into one underscore and drops apostrophes
func normalizeSeparators(s string) string {
	s = strings.TrimFunc(s, unicode.IsSpace)

	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		switch {
		case isApostrophe(r):
			continue
		case isSeparator(r):
			if !inRun {
				b.WriteByte('_')
				inRun = true
			}
		default:
			b.WriteRune(r)
			inRun = false
		}
	}
	return b.String()
}

func removeSpecial(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, s)
}

func collapseUnderscores(s string) string {
	if !strings.Contains(s, "__") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prev := false
	for _, r := range s {
		if r == '_' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stripUnderscores(s string, mode model.UnderscoreStrip) string {
	switch mode {
	case model.StripLeft:
		return strings.TrimLeft(s, "_")
	case model.StripRight:
		return strings.TrimRight(s, "_")
	case model.StripBoth:
		return strings.Trim(s, "_")
	default:
		return s
	}
}

// truncate keeps the first limit runes of s
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
