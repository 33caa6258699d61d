package tags

import "strings"

// Normalize trims whitespace and drops entries that are empty after
// trimming. Original case is preserved; use Key for matching.
func Normalize(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" || t == "#" {
			continue
		}
		k := Key(t)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Key returns the case-insensitive matching key for a tag. A leading '#'
// is not significant for matching.
func Key(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}

// Extract scans content for hashtag tokens (#word) and returns them with
// the '#' prefix and original case.
func Extract(content string) []string {
	var out []string
	fields := strings.FieldsFunc(content, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ',' || r == ';'
	})
	for _, f := range fields {
		if !strings.HasPrefix(f, "#") {
			continue
		}
		t := strings.TrimRight(f, ".,!?:;)\"'")
		if len(t) > 1 {
			out = append(out, t)
		}
	}
	return out
}

// Merge combines explicit tags with tags extracted from content,
// normalized and deduplicated, explicit entries first.
func Merge(explicit []string, content string) []string {
	return Normalize(append(append([]string{}, explicit...), Extract(content)...))
}

// Match reports whether the tag set contains want, case-insensitively.
func Match(set []string, want string) bool {
	wk := Key(want)
	if wk == "" {
		return false
	}
	for _, t := range set {
		if Key(t) == wk {
			return true
		}
	}
	return false
}
