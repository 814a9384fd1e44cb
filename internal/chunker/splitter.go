package chunker

import "unicode"

// boundaryWindow is how far (in runes) around a proposed cut point the
// splitter searches for a sentence boundary.
const boundaryWindow = 100

// segment is one piece of a split oversized unit. start is the rune offset
// of the trimmed text within the source.
type segment struct {
	text  string
	start int
}

// sentenceEnd reports whether r ends a sentence. Both half-width and
// full-width forms are recognized.
func sentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?':
		return true
	}
	return false
}

// split cuts text into pieces of roughly maxChars runes with overlap runes
// shared between consecutive pieces. Each non-final cut snaps to the sentence
// boundary nearest the proposed cut point within boundaryWindow runes, so a
// piece may run slightly past maxChars when the closest boundary lies ahead.
// The next start never regresses: it advances by at least one rune per piece,
// which guarantees termination even when overlap >= maxChars-1. Segments that
// trim to nothing are dropped.
func split(text string, maxChars, overlap int) []segment {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if maxChars <= 0 {
		maxChars = len(runes)
	}
	if overlap < 0 {
		overlap = 0
	}

	var segs []segment
	start := 0
	for start < len(runes) {
		end := start + maxChars
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = snapCut(runes, start, end)
		}

		lead, trail := start, end
		for lead < trail && unicode.IsSpace(runes[lead]) {
			lead++
		}
		for trail > lead && unicode.IsSpace(runes[trail-1]) {
			trail--
		}
		if trail > lead {
			segs = append(segs, segment{text: string(runes[lead:trail]), start: lead})
		}

		if end >= len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return segs
}

// snapCut returns the cut position just after the sentence boundary nearest
// the proposed cut, searching boundaryWindow runes in both directions. Ties
// prefer the earlier boundary. Without a boundary in range the proposed cut
// stands.
func snapCut(runes []rune, start, end int) int {
	for d := 0; d <= boundaryWindow; d++ {
		for _, p := range []int{end - 1 - d, end - 1 + d} {
			if p <= start || p >= len(runes) {
				continue
			}
			if cut := cutAfter(runes, p); cut > start {
				if cut > len(runes) {
					cut = len(runes)
				}
				return cut
			}
			if d == 0 {
				break
			}
		}
	}
	return end
}

// cutAfter returns the position just after a boundary marker at p, or 0 when
// p is not a boundary. A blank line counts as a boundary alongside
// sentence-ending punctuation.
func cutAfter(runes []rune, p int) int {
	if sentenceEnd(runes[p]) {
		return p + 1
	}
	if runes[p] == '\n' && p+1 < len(runes) && runes[p+1] == '\n' {
		return p + 2
	}
	return 0
}
