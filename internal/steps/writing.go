package steps

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shaiso/Synapse/internal/capability"
	"github.com/shaiso/Synapse/internal/domain"
)

// Значения по умолчанию writer и rewriter.
const (
	defaultWriterTone   = "neutral"
	defaultWriterFormat = "plain-text"
	defaultWriterLength = "medium"

	defaultRewriterTone   = "as-is"
	defaultRewriterLength = "as-is"
)

// WriterStep — генерация текста по заданию.
//
// Конфигурация: tone, format, length, sharedContext.
// Вход — поле context узла.
type WriterStep struct {
	backend
}

// NewWriterStep создаёт новый WriterStep.
func NewWriterStep(caps *capability.Registry) *WriterStep {
	return &WriterStep{backend{caps: caps, kind: capability.KindWriter}}
}

// Type возвращает тип узла.
func (s *WriterStep) Type() domain.NodeType {
	return domain.NodeTypeWriter
}

// Execute генерирует текст потоком.
func (s *WriterStep) Execute(ctx context.Context, req *Request) (domain.Payload, error) {
	const label = "Writer"
	cfg := &req.Node.Config

	opts := capability.Options{
		Tone:          orDefault(cfg.Tone, defaultWriterTone),
		Format:        orDefault(cfg.Format, defaultWriterFormat),
		Length:        orDefault(cfg.Length, defaultWriterLength),
		SharedContext: cfg.SharedContext,
	}

	text, err := s.run(ctx, req, label, opts, capability.Input{Text: req.Input})
	if err != nil {
		return domain.Payload{}, fail(req, label, err)
	}
	return domain.TextPayload(text), nil
}

// RewriterStep — переписывание текста.
//
// Конфигурация: tone, length, sharedContext.
type RewriterStep struct {
	backend
}

// NewRewriterStep создаёт новый RewriterStep.
func NewRewriterStep(caps *capability.Registry) *RewriterStep {
	return &RewriterStep{backend{caps: caps, kind: capability.KindRewriter}}
}

// Type возвращает тип узла.
func (s *RewriterStep) Type() domain.NodeType {
	return domain.NodeTypeRewriter
}

// Execute переписывает текст потоком.
func (s *RewriterStep) Execute(ctx context.Context, req *Request) (domain.Payload, error) {
	const label = "Rewriter"
	cfg := &req.Node.Config

	opts := capability.Options{
		Tone:          orDefault(cfg.Tone, defaultRewriterTone),
		Length:        orDefault(cfg.Length, defaultRewriterLength),
		SharedContext: cfg.SharedContext,
	}

	text, err := s.run(ctx, req, label, opts, capability.Input{Text: req.Input})
	if err != nil {
		return domain.Payload{}, fail(req, label, err)
	}
	return domain.TextPayload(text), nil
}

// SummarizerStep — выжимка текста.
//
// Конфигурация: type, format, length, sharedContext.
// instructions или contextHint передаются как контекст вызова.
type SummarizerStep struct {
	backend
}

// NewSummarizerStep создаёт новый SummarizerStep.
func NewSummarizerStep(caps *capability.Registry) *SummarizerStep {
	return &SummarizerStep{backend{caps: caps, kind: capability.KindSummarizer}}
}

// Type возвращает тип узла.
func (s *SummarizerStep) Type() domain.NodeType {
	return domain.NodeTypeSummarizer
}

// Execute делает выжимку потоком.
func (s *SummarizerStep) Execute(ctx context.Context, req *Request) (domain.Payload, error) {
	const label = "Summarizer"
	cfg := &req.Node.Config

	opts := capability.Options{
		Type:          NormalizeSummaryType(cfg.SummaryType),
		Format:        NormalizeSummaryFormat(cfg.Format),
		Length:        NormalizeSummaryLength(cfg.Length),
		SharedContext: cfg.SharedContext,
	}

	in := capability.Input{
		Text:    req.Input,
		Context: firstNonEmpty(cfg.Instructions, cfg.ContextHint),
	}

	text, err := s.run(ctx, req, label, opts, in)
	if err != nil {
		return domain.Payload{}, fail(req, label, err)
	}
	return domain.TextPayload(text), nil
}

// run — общий путь writer/rewriter/summarizer: модель должна быть загружена.
func (b backend) run(ctx context.Context, req *Request, label string, opts capability.Options, in capability.Input) (string, error) {
	p, err := b.provider()
	if err != nil {
		return "", err
	}

	status, err := b.checkAvailability(ctx, p, opts)
	if err != nil {
		return "", err
	}
	if err := b.requireReady(status, fmt.Sprintf("%s API is not available (status: %s)", label, status)); err != nil {
		return "", err
	}

	return b.stream(ctx, p, opts, in, req)
}

var nonLetters = regexp.MustCompile(`[^a-z]`)

// NormalizeSummaryType приводит тип выжимки к key-points, teaser, headline или tldr.
func NormalizeSummaryType(t string) string {
	switch nonLetters.ReplaceAllString(strings.ToLower(t), "") {
	case "keypoints":
		return "key-points"
	case "teaser":
		return "teaser"
	case "headline":
		return "headline"
	default:
		return "tldr"
	}
}

// NormalizeSummaryFormat возвращает plain-text или markdown.
func NormalizeSummaryFormat(f string) string {
	switch strings.ToLower(f) {
	case "plain-text", "plaintext":
		return "plain-text"
	default:
		return "markdown"
	}
}

// NormalizeSummaryLength возвращает short, medium или long.
func NormalizeSummaryLength(l string) string {
	switch strings.ToLower(l) {
	case "medium":
		return "medium"
	case "long":
		return "long"
	default:
		return "short"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
