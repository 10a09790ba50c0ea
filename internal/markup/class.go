package markup

import (
	"regexp"
	"strings"
)

// HasClassToken reports whether the space separated list contains class as a whole token.
func HasClassToken(list, class string) bool {
	for _, tok := range strings.Fields(list) {
		if tok == class {
			return true
		}
	}
	return false
}

// AppendClass adds class to a class list unless it is already present.
func AppendClass(list, class string) string {
	if HasClassToken(list, class) {
		return list
	}
	return strings.TrimSpace(list + " " + class)
}

var classAttrRe = regexp.MustCompile(`(?i)(\sclass\s*=\s*)(?:"([^"]*)"|'([^']*)'|([^\s"'=<>` + "`" + `]+))`)

// AddClassToStartTag returns tag with class added to its class attribute,
// creating the attribute when the tag has none. tag must be a single start tag.
func AddClassToStartTag(tag, class string) string {
	loc := classAttrRe.FindStringSubmatchIndex(tag)
	if loc == nil {
		return insertAttr(tag, `class="`+class+`"`)
	}

	prefix := tag[loc[2]:loc[3]]
	var value, quote string
	switch {
	case loc[4] >= 0:
		value, quote = tag[loc[4]:loc[5]], `"`
	case loc[6] >= 0:
		value, quote = tag[loc[6]:loc[7]], `'`
	default:
		value, quote = tag[loc[8]:loc[9]], `"`
	}
	if HasClassToken(value, class) {
		return tag
	}
	return tag[:loc[0]] + prefix + quote + AppendClass(value, class) + quote + tag[loc[1]:]
}

// insertAttr places attr before the closing > (or />) of a start tag.
func insertAttr(tag, attr string) string {
	end := strings.LastIndex(tag, ">")
	if end < 0 {
		return tag
	}
	if end > 0 && tag[end-1] == '/' {
		end--
	}
	head := strings.TrimRight(tag[:end], " \t\r\n")
	return head + " " + attr + tag[end:]
}
