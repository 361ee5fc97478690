package cleaner

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// CleanAll cleans every label and makes the results unique. Labels that
// clean to the empty string are replaced with column_<position>. The first
// occurrence of a name keeps it; later duplicates get _1, _2, ... suffixes.
func (c *NameCleaner) CleanAll(labels []string) []string {
	out := make([]string, len(labels))
	used := make(map[string]bool, len(labels))
	var empty []int
	for i, label := range labels {
		out[i] = c.Clean(label)
		if out[i] == "" {
			empty = append(empty, i)
			continue
		}
		used[out[i]] = true
	}

	// placeholders never take a name a real label cleaned to
	for _, i := range empty {
		tag := strconv.Itoa(i + 1)
		placeholder := fitSuffix("column", tag, c.cfg.TruncateLimit)
		for n := 1; used[placeholder]; n++ {
			placeholder = fitSuffix("column", tag+"_"+strconv.Itoa(n), c.cfg.TruncateLimit)
		}
		used[placeholder] = true
		out[i] = placeholder
	}
	return Deduplicate(out, c.cfg.TruncateLimit)
}

// RenameMapping returns old→new for every label whose cleaned, deduplicated
// form differs from the original. labels must be unique.
func (c *NameCleaner) RenameMapping(labels []string) map[string]string {
	cleaned := c.CleanAll(labels)
	mapping := make(map[string]string)
	for i, old := range labels {
		if cleaned[i] != old {
			mapping[old] = cleaned[i]
		}
	}
	return mapping
}

// Deduplicate resolves repeated names in order. Every first occurrence is
// reserved up front so a suffixed name never steals a label that appears
// later in the sequence. With limit > 0 every suffixed name fits in limit
// runes as long as limit leaves room for the counter (see fitSuffix).
func Deduplicate(names []string, limit int) []string {
	out := make([]string, len(names))
	taken := make(map[string]bool, len(names))
	first := make(map[string]int, len(names))
	for i, name := range names {
		if _, ok := first[name]; !ok {
			first[name] = i
			taken[name] = true
		}
	}

	counters := make(map[string]int)
	for i, name := range names {
		if first[name] == i {
			out[i] = name
			continue
		}

		counter := counters[name]
		if counter == 0 {
			counter = 1
		}
		for {
			candidate := fitSuffix(name, strconv.Itoa(counter), limit)
			if !taken[candidate] {
				counters[name] = counter + 1
				taken[candidate] = true
				out[i] = candidate
				break
			}
			counter++
		}
	}
	return out
}

// fitSuffix joins base and tag as base_tag. With limit > 0 base is shortened
// so the result fits; once the underscore no longer fits it is dropped, and
// once base no longer fits only tag is kept. A tag longer than limit cannot
// fit at all and the unshortened form is returned.
func fitSuffix(base, tag string, limit int) string {
	joined := base + "_" + tag
	if limit <= 0 || utf8.RuneCountInString(joined) <= limit {
		return joined
	}

	room := limit - utf8.RuneCountInString(tag)
	if room > 1 {
		if b := strings.TrimRight(truncate(base, room-1), "_"); b != "" {
			return b + "_" + tag
		}
	}
	if room > 0 {
		return truncate(base, room) + tag
	}
	if room == 0 {
		return tag
	}
	return joined
}
