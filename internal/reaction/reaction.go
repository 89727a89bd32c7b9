// Package reaction decodes the reaction-tag protocol embedded in AI replies.
// The gateway is the only producer of decoded envelopes; nothing downstream
// ever matches raw text.
package reaction

import (
	"regexp"
	"strings"

	"github.com/shynlabs/shyn/internal/types"
)

// markerPattern matches a valid leading reaction tag and trailing whitespace.
var markerPattern = regexp.MustCompile(`^\[reaction:(HEART|LAUGH|SURPRISE|CELEBRATE)\]\s*`)

// anyMarkerPattern matches any leading reaction-shaped tag, valid or not,
// so unknown tags are still stripped from history.
var anyMarkerPattern = regexp.MustCompile(`^\[reaction:\w+\]\s*`)

// Decode extracts the leading reaction tag from an AI reply. It returns the
// reply with the tag and following whitespace removed, the decoded reaction,
// and whether a valid tag was present. Text without a tag is returned
// unchanged.
func Decode(text string) (string, types.Reaction, bool) {
	match := markerPattern.FindStringSubmatch(text)
	if match == nil {
		return text, "", false
	}
	clean := strings.TrimSpace(strings.TrimPrefix(text, match[0]))
	return clean, types.Reaction(match[1]), true
}

// Strip removes any leading reaction marker without interpreting it. Used
// when prior AI turns are re-fed as session history.
func Strip(text string) string {
	return anyMarkerPattern.ReplaceAllString(text, "")
}
