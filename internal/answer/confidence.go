package answer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

const citationSnippetLength = 200

var citationRef = regexp.MustCompile(`\[(\d+)\]`)

// refusalPhrases mark answers where the generator declined to commit. Both
// English and Chinese course materials appear in practice.
var refusalPhrases = []string{
	"insufficient evidence",
	"cannot determine",
	"unable to determine",
	"not enough information",
	"need more information",
	"证据不足",
	"无法确定",
	"不能确定",
	"信息不够",
	"需要更多",
}

// Confidence scores an answer against its evidence:
// clamp(0.4*avg_score + 0.4*citation_coverage + 0.2), halved first when the
// answer contains a refusal phrase. Coverage counts distinct valid citations
// over the evidence count.
func Confidence(hits []*models.SearchHit, answerText string) float64 {
	if len(hits) == 0 {
		return 0.0
	}

	var sum float64
	for _, h := range hits {
		sum += h.Score
	}
	avgScore := sum / float64(len(hits))

	coverage := float64(len(citedIndexes(answerText, len(hits)))) / float64(len(hits))
	if coverage > 1.0 {
		coverage = 1.0
	}

	confidence := 0.4*avgScore + 0.4*coverage + 0.2

	lower := strings.ToLower(answerText)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			confidence *= 0.5
			break
		}
	}

	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return confidence
}

// ExtractCitations resolves the distinct [n] references in an answer to
// their evidence chunks, in ascending reference order. References outside
// [1, len(hits)] are ignored.
func ExtractCitations(hits []*models.SearchHit, answerText string) []*models.Citation {
	citations := make([]*models.Citation, 0, len(hits))
	for _, n := range citedIndexes(answerText, len(hits)) {
		h := hits[n-1]
		snippet := h.Snippet
		if snippet == "" {
			snippet = utils.Truncate(h.Text, citationSnippetLength)
		}
		citations = append(citations, &models.Citation{
			ChunkID:    h.ChunkID,
			DocumentID: h.DocumentID,
			Section:    h.Meta.Section,
			Snippet:    snippet,
		})
	}
	return citations
}

// citedIndexes returns the distinct 1-based references in answerText that
// fall within [1, max], ascending.
func citedIndexes(answerText string, max int) []int {
	seen := make(map[int]bool)
	for _, m := range citationRef.FindAllStringSubmatch(answerText, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > max {
			continue
		}
		seen[n] = true
	}
	out := make([]int, 0, len(seen))
	for n := 1; n <= max; n++ {
		if seen[n] {
			out = append(out, n)
		}
	}
	return out
}
