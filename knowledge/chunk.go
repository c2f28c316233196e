package knowledge

import "strings"

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// separators are tried in order when looking for a clean place to cut.
var separators = []string{"\n\n", "\n", ". ", " "}

// Split cuts text into pieces of at most size runes, consecutive pieces
// sharing up to overlap runes. Cuts prefer paragraph, line, sentence and
// word boundaries found in the second half of a piece.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(strings.TrimSpace(text))
	var out []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			if piece := strings.TrimSpace(string(runes[start:])); piece != "" {
				out = append(out, piece)
			}
			break
		}
		end = cutPoint(runes, start, end)
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func cutPoint(runes []rune, start, end int) int {
	window := string(runes[start:end])
	half := (end - start) / 2
	for _, sep := range separators {
		i := strings.LastIndex(window, sep)
		if i < 0 {
			continue
		}
		// i is a byte offset; convert back to runes.
		cut := len([]rune(window[:i+len(sep)]))
		if cut >= half {
			return start + cut
		}
	}
	return end
}
