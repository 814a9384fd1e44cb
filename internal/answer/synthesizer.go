// Package answer synthesizes evidence-grounded answers: retrieval, prompt
// construction, generation (whole or streamed), and confidence/citation
// post-processing.
package answer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
)

// systemRole grounds the generator in its teaching-assistant persona.
const systemRole = "You are a professional teaching assistant for this course. Answer from the provided course materials."

var whitespaceRun = regexp.MustCompile(`\s+`)

// Synthesizer turns questions into evidence-grounded answers.
type Synthesizer struct {
	retriever *retrieval.Retriever
	generator llm.Generator
	store     storage.Storage
	threshold float64
	logger    *zap.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger for the synthesizer.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Synthesizer) {
		s.logger = logger
	}
}

// NewSynthesizer creates a synthesizer. Answers scoring below threshold are
// still returned but not persisted.
func NewSynthesizer(retriever *retrieval.Retriever, generator llm.Generator, store storage.Storage, threshold float64, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		retriever: retriever,
		generator: generator,
		store:     store,
		threshold: threshold,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers req in one response. With no retrieved evidence a fixed
// no-evidence response is returned and the generator is never called.
func (s *Synthesizer) Ask(ctx context.Context, req *models.AskRequest) (*models.AskResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, models.WrapError(models.CodeInvalidInput, err, "invalid ask request")
	}
	question := normalizeQuestion(req.Question)

	hits, err := s.retrieve(ctx, req.CourseID, question, req.TopK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return noEvidenceResponse(req.Question), nil
	}

	prompt := s.buildPrompt(ctx, question, hits)
	answerText, err := s.generator.Generate(ctx, systemRole, prompt)
	if err != nil {
		return nil, err
	}

	return s.finalize(ctx, req.CourseID, req.Question, answerText, hits), nil
}

// AskStream answers req incrementally: zero or more delta events, then
// exactly one final or error event, all delivered through onEvent in order.
// An onEvent error (caller gone) aborts the stream.
func (s *Synthesizer) AskStream(ctx context.Context, req *models.AskRequest, onEvent func(models.StreamEvent) error) error {
	if err := req.Validate(); err != nil {
		return onEvent(models.StreamEvent{Type: models.StreamError, Message: err.Error()})
	}
	question := normalizeQuestion(req.Question)

	hits, err := s.retrieve(ctx, req.CourseID, question, req.TopK)
	if err != nil {
		return onEvent(models.StreamEvent{Type: models.StreamError, Message: models.AsError(err).Message})
	}
	if len(hits) == 0 {
		resp := noEvidenceResponse(req.Question)
		if err := onEvent(models.StreamEvent{Type: models.StreamDelta, Text: resp.Answer}); err != nil {
			return err
		}
		zero := 0.0
		return onEvent(models.StreamEvent{Type: models.StreamFinal, Confidence: &zero, Citations: []*models.Citation{}})
	}

	prompt := s.buildPrompt(ctx, question, hits)
	var emitErr error
	full, err := s.generator.GenerateStream(ctx, systemRole, prompt, func(text string) error {
		emitErr = onEvent(models.StreamEvent{Type: models.StreamDelta, Text: text})
		return emitErr
	})
	if emitErr != nil {
		return emitErr
	}
	if err != nil {
		return onEvent(models.StreamEvent{Type: models.StreamError, Message: models.AsError(err).Message})
	}

	resp := s.finalize(ctx, req.CourseID, req.Question, full, hits)
	return onEvent(models.StreamEvent{
		Type:       models.StreamFinal,
		QAID:       resp.QAID,
		Confidence: &resp.Confidence,
		Citations:  resp.Citations,
	})
}

func (s *Synthesizer) retrieve(ctx context.Context, courseID, question string, topK int) ([]*models.SearchHit, error) {
	resp, err := s.retriever.Search(ctx, &models.SearchRequest{
		CourseID: courseID,
		Query:    question,
		TopK:     topK,
	})
	if err != nil {
		return nil, err
	}
	return resp.Hits, nil
}

// buildPrompt embeds each evidence item as an enumerated, source-attributed
// block. Document file names come from storage; an unresolvable document
// falls back to its ID.
func (s *Synthesizer) buildPrompt(ctx context.Context, question string, hits []*models.SearchHit) string {
	names := make(map[string]string)
	var b strings.Builder
	b.WriteString("Answer the question using the evidence below.\n\nEvidence:\n")
	for i, h := range hits {
		name, ok := names[h.DocumentID]
		if !ok {
			name = h.DocumentID
			if doc, err := s.store.GetDocument(ctx, h.DocumentID); err == nil {
				name = doc.FileName
			}
			names[h.DocumentID] = name
		}
		section := h.Meta.Section
		if section == "" {
			section = "unknown section"
		}
		fmt.Fprintf(&b, "[%d] source: %s - %s\n%s\n\n", i+1, name, section, h.Text)
	}
	b.WriteString("Question: " + question + "\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("1. Base the answer only on the evidence above and cite the items you use as [n].\n")
	b.WriteString("2. Be accurate, complete, and clearly structured.\n")
	b.WriteString("3. If the evidence does not cover the question, say so explicitly.\n\n")
	b.WriteString("Answer:")
	return b.String()
}

// finalize post-processes a full answer: confidence, citations, followups,
// and the QA log. Low-confidence answers are returned but not persisted, and
// their followups become clarifying prompts.
func (s *Synthesizer) finalize(ctx context.Context, courseID, question, answerText string, hits []*models.SearchHit) *models.AskResponse {
	citations := ExtractCitations(hits, answerText)
	confidence := Confidence(hits, answerText)

	if confidence < s.threshold {
		s.logger.Info("low confidence answer, not persisted",
			zap.String("course_id", courseID),
			zap.Float64("confidence", confidence))
		return &models.AskResponse{
			Answer:     answerText,
			Confidence: confidence,
			Citations:  citations,
			Followups:  clarifyingFollowups(),
		}
	}

	rec := &models.QARecord{
		ID:         uuid.New().String(),
		CourseID:   courseID,
		Question:   question,
		Answer:     answerText,
		Citations:  citations,
		Confidence: confidence,
	}
	if err := s.store.CreateQARecord(ctx, rec); err != nil {
		s.logger.Error("persist qa record", zap.Error(err))
		rec.ID = ""
	}

	return &models.AskResponse{
		QAID:       rec.ID,
		Answer:     answerText,
		Confidence: confidence,
		Citations:  citations,
		Followups:  Followups(question, answerText),
	}
}

// normalizeQuestion collapses whitespace and guarantees a terminal question
// mark, accepting the full-width form.
func normalizeQuestion(q string) string {
	q = whitespaceRun.ReplaceAllString(strings.TrimSpace(q), " ")
	if q == "" {
		return q
	}
	if !strings.HasSuffix(q, "?") && !strings.HasSuffix(q, "？") {
		q += "?"
	}
	return q
}

// noEvidenceResponse is the fixed reply when retrieval finds nothing. No
// generation call is made and nothing is persisted.
func noEvidenceResponse(question string) *models.AskResponse {
	return &models.AskResponse{
		Answer: fmt.Sprintf("Sorry, I could not find anything in the course materials related to %q. Try:\n"+
			"1. Using more specific keywords\n"+
			"2. Checking how the question is phrased\n"+
			"3. Confirming the topic is covered by this course", question),
		Confidence: 0.0,
		Citations:  []*models.Citation{},
		Followups: []string{
			"What topics does this course cover?",
			"Which documents are available in this course?",
			"What are the key concepts of this course?",
		},
	}
}
