package vault

import (
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ignoreRule is one compiled exclusion pattern.
type ignoreRule struct {
	re       *regexp.Regexp
	negate   bool
	dirOnly  bool
	anchored bool
}

// Ignore matches vault-relative paths against gitignore-style patterns.
// Later patterns override earlier ones; "!pattern" re-includes.
type Ignore struct {
	rules []ignoreRule
}

// NewIgnore compiles patterns. Blank lines and '#' comments are skipped.
func NewIgnore(patterns []string) *Ignore {
	ig := &Ignore{}
	for _, p := range patterns {
		ig.add(p)
	}
	return ig
}

func (ig *Ignore) add(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	var r ignoreRule
	if strings.HasPrefix(pattern, "!") {
		r.negate = true
		pattern = pattern[1:]
	} else if strings.HasPrefix(pattern, `\!`) || strings.HasPrefix(pattern, `\#`) {
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = pattern[1:]
	} else if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		r.anchored = true
	}
	if pattern == "" {
		return
	}

	r.re = regexp.MustCompile("^" + globToRegexp(pattern) + "$")
	ig.rules = append(ig.rules, r)
}

// Match reports whether rel (slash-separated, relative to the vault root)
// is excluded. A path inside an excluded directory is excluded too.
func (ig *Ignore) Match(rel string, isDir bool) bool {
	rel = strings.Trim(path.Clean(rel), "/")
	if rel == "." || rel == "" {
		return false
	}
	parts := strings.Split(rel, "/")

	excluded := false
	for _, r := range ig.rules {
		if r.matches(parts, isDir) {
			excluded = !r.negate
		}
	}
	return excluded
}

// matches checks the path and each of its parent directories.
func (r ignoreRule) matches(parts []string, isDir bool) bool {
	for i := range parts {
		prefix := parts[:i+1]
		last := i == len(parts)-1
		if r.dirOnly && last && !isDir {
			break
		}
		if r.anchored {
			if r.re.MatchString(strings.Join(prefix, "/")) {
				return true
			}
			continue
		}
		if r.re.MatchString(prefix[i]) || r.re.MatchString(strings.Join(prefix, "/")) {
			return true
		}
	}
	return false
}

// globToRegexp translates *, ? and ** into a regular expression.
func globToRegexp(glob string) string {
	var sb strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch {
		case c == '*' && strings.HasPrefix(glob[i:], "**/"):
			sb.WriteString("(?:.*/)?")
			i += 2
		case c == '*' && strings.HasPrefix(glob[i:], "**"):
			sb.WriteString(".*")
			i++
		case c == '*':
			sb.WriteString("[^/]*")
		case c == '?':
			sb.WriteString("[^/]")
		case c == '\\' && i+1 < len(glob):
			i++
			writeLiteral(&sb, glob[i])
		default:
			writeLiteral(&sb, c)
		}
	}
	return sb.String()
}

// writeLiteral writes one byte, escaping ASCII metacharacters. Bytes of
// multi-byte runes pass through unchanged.
func writeLiteral(sb *strings.Builder, c byte) {
	if c < utf8.RuneSelf && strings.IndexByte(`\.+*?()|[]{}^$`, c) >= 0 {
		sb.WriteByte('\\')
	}
	sb.WriteByte(c)
}
