package status

import (
	"iter"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/xeptore/spotstat/iterutil"
	"github.com/xeptore/spotstat/jsonv"
)

const separator = " | "

// Tags label the names of a currently-playing object in the order they are
// found in it. Names beyond the tags are dropped.
var Tags = []string{"ARTIST: ", "ALBUM: ", "TRACK: "}

// Line renders the distinct names, in first-seen order, each prefixed by its
// tag.
func Line(names iter.Seq[string]) string {
	parts := make([]string, 0, len(Tags))
	for i, name := range iterutil.WithIndex(iterutil.Take(iterutil.Unique(names), len(Tags))) {
		parts = append(parts, Tags[i]+name)
	}

	return strings.Join(parts, separator)
}

// LineOf renders the status line of a currently-playing object.
func LineOf(current jsonv.Value) string {
	return Line(jsonv.SearchStrings(current, "name"))
}

// Shorten collapses whitespace in s and, if it is still wider than width,
// cuts it at a word boundary and appends placeholder so that the result fits
// width. A single word wider than width is cut mid-word. width is measured in
// terminal cells.
func Shorten(s string, width int, placeholder string) string {
	words := strings.Fields(s)

	collapsed := strings.Join(words, " ")
	if text.RuneWidthWithoutEscSequences(collapsed) <= width {
		return collapsed
	}

	var (
		line    []string
		lineLen int
	)
	for _, word := range words {
		sep := 0
		if len(line) > 0 {
			sep = 1
		}

		w := text.RuneWidthWithoutEscSequences(word)
		if lineLen+sep+w <= width {
			line = append(line, word)
			lineLen += sep + w

			continue
		}

		if w > width {
			if left := width - lineLen - sep; left > 0 {
				line = append(line, text.Trim(word, left))
				lineLen += sep + left
			}
		}

		break
	}

	placeholderLen := text.RuneWidthWithoutEscSequences(placeholder)
	for len(line) > 0 {
		if lineLen+placeholderLen <= width {
			return strings.Join(line, " ") + placeholder
		}

		last := line[len(line)-1]
		line = line[:len(line)-1]
		lineLen -= text.RuneWidthWithoutEscSequences(last)
		if len(line) > 0 {
			lineLen--
		}
	}

	return strings.TrimLeft(placeholder, " ")
}
