package library

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	yearPrefixPattern  = regexp.MustCompile(`^(\d{4})\s*[-–_.]\s*(.+)$`)
	parenPrefixPattern = regexp.MustCompile(`^[\(\[](\d{4})[\)\]]\s*[-–_.]?\s*(.+)$`)
	yearSuffixPattern  = regexp.MustCompile(`^(.+?)\s*[\(\[](\d{4})[\)\]]$`)
	trailingGroup      = regexp.MustCompile(`\s*[\(\[]([^\(\)\[\]]+)[\)\]]$`)
)

const (
	minYear = 1900
	maxYear = 2100
)

// FolderName is a parsed release folder name.
type FolderName struct {
	Year int
	// YearPrefixed is set when the name already starts with "YYYY - ".
	YearPrefixed bool
	Title        string
	CategoryHint string
	Editions     []string
}

// HasYear reports whether a release year was found.
func (f FolderName) HasYear() bool {
	return f.Year != 0
}

// Edition joins edition qualifiers the way they appear in folder names.
func (f FolderName) Edition() string {
	return strings.Join(f.Editions, ", ")
}

// ParseFolderName splits a release folder name into its parts. Recognized
// year forms are "YYYY - Title", "(YYYY) Title" and "Title (YYYY)"; trailing
// parenthesised or bracketed groups naming a category become the category
// hint, any others are kept as editions.
func ParseFolderName(name string, cats *Categories) FolderName {
	rest := strings.TrimSpace(name)
	var out FolderName

	if m := yearPrefixPattern.FindStringSubmatch(rest); m != nil && validYear(m[1]) {
		out.Year, _ = strconv.Atoi(m[1])
		out.YearPrefixed = strings.HasPrefix(rest, m[1]+" - ")
		rest = m[2]
	} else if m := parenPrefixPattern.FindStringSubmatch(rest); m != nil && validYear(m[1]) {
		out.Year, _ = strconv.Atoi(m[1])
		rest = m[2]
	}

	var trailing []string
	for {
		if out.Year == 0 {
			if m := yearSuffixPattern.FindStringSubmatch(rest); m != nil && validYear(m[2]) {
				out.Year, _ = strconv.Atoi(m[2])
				rest = strings.TrimSpace(m[1])
				continue
			}
		}
		loc := trailingGroup.FindStringSubmatchIndex(rest)
		if loc == nil || loc[0] == 0 {
			break
		}
		trailing = append([]string{strings.TrimSpace(rest[loc[2]:loc[3]])}, trailing...)
		rest = strings.TrimSpace(rest[:loc[0]])
	}

	for _, group := range trailing {
		if cats != nil && out.CategoryHint == "" {
			if canonical, ok := cats.Canonical(group); ok {
				out.CategoryHint = canonical
				continue
			}
		}
		out.Editions = append(out.Editions, group)
	}
	out.Title = strings.TrimSpace(rest)
	return out
}

// Format renders `<Year> - <Title>[ (Category)][ (Edition)]`. The category
// is only rendered when category is non-empty.
func (f FolderName) Format(category string) string {
	var b strings.Builder
	if f.Year != 0 {
		b.WriteString(strconv.Itoa(f.Year))
		b.WriteString(" - ")
	}
	b.WriteString(f.Title)
	if category != "" {
		b.WriteString(" (")
		b.WriteString(category)
		b.WriteByte(')')
	}
	for _, edition := range f.Editions {
		b.WriteString(" (")
		b.WriteString(edition)
		b.WriteByte(')')
	}
	return b.String()
}

func validYear(value string) bool {
	year, err := strconv.Atoi(value)
	return err == nil && year >= minYear && year <= maxYear
}
