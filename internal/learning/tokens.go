package learning

import (
	"regexp"
	"strings"
)

var (
	digitsPattern = regexp.MustCompile(`\d+`)
	wordPattern   = regexp.MustCompile(`[A-Za-z]+\d*`)
	flagsPattern  = regexp.MustCompile(`\(\?[a-zA-Z]+\)`)
)

// genericTokens are container and widget-type words that say nothing about
// which section a field belongs to.
var genericTokens = map[string]bool{
	"form": true, "subform": true, "page": true, "p": true, "t": true,
	"textfield": true, "text": true, "field": true, "area": true,
	"checkbox": true, "check": true, "box": true,
	"radiobuttonlist": true, "radiobutton": true, "radio": true, "button": true,
	"dropdownlist": true, "dropdown": true, "combo": true, "list": true,
	"datefield": true, "date": true, "from": true, "to": true,
	"name": true, "suffix": true, "entry": true, "row": true, "cell": true,
	"table": true, "section": true, "sections": true, "d": true,
}

// NormalizeName strips digits so that repeated widgets share one key:
// "form1[0].Section13_2[0].TextField11[3]" becomes
// "form[].Section_[].TextField[]".
func NormalizeName(name string) string {
	return digitsPattern.ReplaceAllString(name, "")
}

// Tokens returns the lower-cased words of s, each with any trailing digits.
func Tokens(s string) []string {
	words := wordPattern.FindAllString(s, -1)
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}

func base(token string) (string, bool) {
	trimmed := strings.TrimRight(token, "0123456789")
	return trimmed, len(trimmed) < len(token)
}

// Distinguishing reports whether token can tell sections apart. A section
// token counts only when it carries its number.
func Distinguishing(token string) bool {
	b, numbered := base(token)
	if b == "" {
		return false
	}
	if b == "section" || b == "sections" {
		return numbered
	}
	return !genericTokens[b]
}

// GenericOnly reports whether a pattern's literal words are all generic.
func GenericOnly(pattern string) bool {
	for _, tok := range Tokens(literalText(pattern)) {
		if Distinguishing(tok) {
			return false
		}
	}
	return true
}

// literalText keeps the characters a pattern matches literally. Escaped
// metacharacters become literals; classes, flag groups and operators become
// separators.
func literalText(pattern string) string {
	pattern = flagsPattern.ReplaceAllString(pattern, " ")

	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			i++
			if strings.IndexByte("dDwWsSbBAz", pattern[i]) >= 0 {
				b.WriteByte(' ')
			} else {
				b.WriteByte(pattern[i])
			}
		case c == '[':
			for i+1 < len(pattern) && pattern[i+1] != ']' {
				if pattern[i+1] == '\\' {
					i++
				}
				i++
			}
			i++
			b.WriteByte(' ')
		case strings.IndexByte("^$.*+?()|{}", c) >= 0:
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// container returns the hierarchical parent of a field name, or "" for flat
// names.
func container(name string) string {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return ""
	}
	return name[:i]
}

// commonPrefix returns the longest shared prefix of names, cut back to the
// last delimiter so that it never ends inside a word.
func commonPrefix(names []string) string {
	if len(names) == 0 {
		return ""
	}
	prefix := names[0]
	for _, n := range names[1:] {
		i := 0
		for i < len(prefix) && i < len(n) && prefix[i] == n[i] {
			i++
		}
		prefix = prefix[:i]
	}
	if cut := strings.LastIndexAny(prefix, "._[-"); cut >= 0 {
		return prefix[:cut+1]
	}
	return ""
}

// template turns a name into an anchored pattern matching the same name with
// any numbers.
func template(name string) string {
	parts := digitsPattern.Split(name, -1)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return "^" + strings.Join(parts, `\d+`) + "$"
}
