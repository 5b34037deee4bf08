package confidence

import (
	"regexp"
	"strings"

	"github.com/sells-group/geoprofiles/internal/normalize"
)

var (
	thinkBlock   = regexp.MustCompile(`(?is)<think>.*?</think>`)
	listMarker   = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s*`)
	emptyReplies = map[string]bool{"none": true, "n/a": true, "no invalid locations": true}
)

// ParseFlagged extracts flagged strings from a classifier reply.
//
// Grammar: an optional <think>…</think> block is removed, markdown fences are
// dropped, the rest is split on line breaks and each line is trimmed of list
// markers and wrapping quotes. Only lines naming one of candidates
// (case- and whitespace-insensitive) are kept, spelled as in candidates.
// A line flags every candidate sharing its key.
func ParseFlagged(reply string, candidates []string) []string {
	byKey := make(map[string][]string, len(candidates))
	for _, c := range candidates {
		k := normalize.Key(c)
		byKey[k] = append(byKey[k], c)
	}

	text := thinkBlock.ReplaceAllString(reply, "")
	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = cleanLine(line)
		if line == "" || emptyReplies[strings.ToLower(line)] {
			continue
		}
		for _, orig := range byKey[normalize.Key(line)] {
			if seen[orig] {
				continue
			}
			seen[orig] = true
			out = append(out, orig)
		}
	}
	return out
}

func cleanLine(line string) string {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	if strings.HasPrefix(line, "```") {
		return ""
	}
	line = listMarker.ReplaceAllString(line, "")
	line = strings.Trim(line, "\"'`")
	return strings.TrimSpace(line)
}
