package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/David-Botos/column-janitor/pkg/model"
)

func TestDeduplicate(t *testing.T) {
	tests := []struct {
		name  string
		in    []string
		limit int
		want  []string
	}{
		{
			name: "no duplicates",
			in:   []string{"a", "b", "c"},
			want: []string{"a", "b", "c"},
		},
		{
			name: "first occurrence wins",
			in:   []string{"a", "a", "b", "a"},
			want: []string{"a", "a_1", "b", "a_2"},
		},
		{
			name: "suffix skips names taken later in the sequence",
			in:   []string{"a", "a", "a_1"},
			want: []string{"a", "a_2", "a_1"},
		},
		{
			name: "suffix skips names produced by earlier suffixing",
			in:   []string{"a_1", "a", "a", "a_1"},
			want: []string{"a_1", "a", "a_2", "a_1_1"},
		},
		{
			name:  "base shortened to respect limit",
			in:    []string{"bell", "bell", "bell"},
			limit: 4,
			want:  []string{"bell", "be_1", "be_2"},
		},
		{
			name:  "underscore dropped when only the counter fits",
			in:    []string{"ab", "ab"},
			limit: 2,
			want:  []string{"ab", "a1"},
		},
		{
			name:  "counter alone at the smallest limit",
			in:    []string{"a", "a", "a"},
			limit: 1,
			want:  []string{"a", "1", "2"},
		},
		{
			name: "empty input",
			in:   []string{},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Deduplicate(tt.in, tt.limit))
		})
	}
}

func TestCleanAllPlaceholders(t *testing.T) {
	nc := newCleaner(t, func(c *model.CleaningConfig) { c.RemoveSpecial = true })
	got := nc.CleanAll([]string{"@#$", "", "column_1", "A", "a"})
	assert.Equal(t, []string{"column_1_1", "column_2", "column_1", "a", "a_1"}, got)
}

func TestCleanAllPlaceholdersRespectLimit(t *testing.T) {
	nc := newCleaner(t, func(c *model.CleaningConfig) {
		c.RemoveSpecial = true
		c.StripUnderscores = model.StripBoth
		c.TruncateLimit = 3
	})
	assert.Equal(t, []string{"c_1", "abc", "3_1", "c_3"}, nc.CleanAll([]string{"@#$", "abc", "", "c_3"}))
}

func TestFitSuffix(t *testing.T) {
	tests := []struct {
		base  string
		tag   string
		limit int
		want  string
	}{
		{"order_date", "1", 0, "order_date_1"},
		{"order_date", "1", 12, "order_date_1"},
		{"order_date", "1", 7, "order_1"},
		{"order_date", "12", 7, "orde_12"},
		{"ab", "1", 2, "a1"},
		{"ab", "12", 2, "12"},
		{"ab", "123", 2, "ab_123"},
		{"a_b", "1", 4, "a_1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fitSuffix(tt.base, tt.tag, tt.limit), "%s/%s/%d", tt.base, tt.tag, tt.limit)
	}
}

func TestRenameMapping(t *testing.T) {
	nc := newCleaner(t, nil)
	mapping := nc.RenameMapping([]string{"id", "Order Date", "order_date", "Total"})
	assert.Equal(t, map[string]string{
		"Order Date": "order_date",
		"order_date": "order_date_1",
		"Total":      "total",
	}, mapping)

	assert.Empty(t, nc.RenameMapping([]string{"a", "b"}))
}
