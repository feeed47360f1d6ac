package steps

import (
	"context"

	"github.com/shaiso/Synapse/internal/capability"
	"github.com/shaiso/Synapse/internal/domain"
)

const (
	proofreaderSystemPrompt = "You are a professional proofreader. Fix grammar, spelling, and punctuation errors. Return only the corrected text without explanations."
	proofreaderInstruction  = "Proofread and correct this text:\n\n"

	proofreaderTemperature = 0.5
	proofreaderTopK        = 3
)

// ProofreaderStep — исправление грамматики и орфографии.
// Работает через языковую модель с фиксированной системной инструкцией.
type ProofreaderStep struct {
	backend
}

// NewProofreaderStep создаёт новый ProofreaderStep.
func NewProofreaderStep(caps *capability.Registry) *ProofreaderStep {
	return &ProofreaderStep{backend{caps: caps, kind: capability.KindLanguageModel}}
}

// Type возвращает тип узла.
func (s *ProofreaderStep) Type() domain.NodeType {
	return domain.NodeTypeProofreader
}

// Execute исправляет текст одним вызовом.
func (s *ProofreaderStep) Execute(ctx context.Context, req *Request) (domain.Payload, error) {
	const label = "Proofreader"

	p, err := s.provider()
	if err != nil {
		return domain.Payload{}, fail(req, label, err)
	}

	status, err := s.checkAvailability(ctx, p, capability.Options{})
	if err != nil {
		return domain.Payload{}, fail(req, label, err)
	}
	if err := s.requireReady(status, "Proofreader API is not available"); err != nil {
		return domain.Payload{}, fail(req, label, err)
	}

	opts := capability.Options{
		Temperature:  proofreaderTemperature,
		TopK:         proofreaderTopK,
		SystemPrompt: proofreaderSystemPrompt,
	}

	text, err := s.oneShot(ctx, p, opts, capability.Input{Text: proofreaderInstruction + req.Input}, req)
	if err != nil {
		return domain.Payload{}, fail(req, label, err)
	}
	return domain.TextPayload(text), nil
}
