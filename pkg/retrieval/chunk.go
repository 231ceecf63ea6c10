package retrieval

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// ChunkText splits text into windows of at most size runes, consecutive
// windows sharing overlap runes. A window ends after the last newline in its
// second half, else after the last space there, else at the hard limit.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	r := []rune(text)

	var chunks []string
	start := 0
	for start < len(r) {
		end := start + size
		if end < len(r) {
			if cut := lastBreak(r, start+size/2, end); cut != -1 {
				end = cut + 1
			}
		} else {
			end = len(r)
		}

		if s := strings.TrimSpace(string(r[start:end])); s != "" {
			chunks = append(chunks, s)
		}
		if end >= len(r) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func lastBreak(r []rune, lo, hi int) int {
	for _, sep := range []rune{'\n', ' '} {
		for i := hi - 1; i >= lo; i-- {
			if r[i] == sep {
				return i
			}
		}
	}
	return -1
}
