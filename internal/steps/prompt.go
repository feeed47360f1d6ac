package steps

import (
	"context"
	"strings"

	"github.com/shaiso/Synapse/internal/capability"
	"github.com/shaiso/Synapse/internal/domain"
)

// Параметры генерации prompt-узла по умолчанию.
const (
	defaultPromptTemperature = 1.0
	defaultPromptTopK        = 3
)

// PromptStep — запрос к языковой модели, в том числе multimodal.
//
// Конфигурация: prompt, systemPrompt, temperature, topK,
// selectedAttachments, imageAttachmentLimit, audioAttachmentLimit.
type PromptStep struct {
	backend
}

// NewPromptStep создаёт новый PromptStep.
func NewPromptStep(caps *capability.Registry) *PromptStep {
	return &PromptStep{backend{caps: caps, kind: capability.KindLanguageModel}}
}

// Type возвращает тип узла.
func (s *PromptStep) Type() domain.NodeType {
	return domain.NodeTypePrompt
}

// Execute отправляет запрос и получает ответ потоком.
//
// Если выбраны вложения, запрос уходит одним user-сообщением
// из текстовой части и частей с вложениями; иначе — простым текстом.
func (s *PromptStep) Execute(ctx context.Context, req *Request) (domain.Payload, error) {
	const label = "Prompt API"
	cfg := &req.Node.Config

	attachments := CollectAttachments(req.Node, req.Results)

	opts := capability.Options{
		Temperature:    cfg.Temperature,
		TopK:           cfg.TopK,
		SystemPrompt:   strings.TrimSpace(cfg.SystemPrompt),
		ExpectedInputs: expectedInputs(attachments),
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultPromptTemperature
	}
	if opts.TopK == 0 {
		opts.TopK = defaultPromptTopK
	}

	p, err := s.provider()
	if err != nil {
		return domain.Payload{}, fail(req, label, err)
	}

	availOpts := capability.Options{ExpectedInputs: opts.ExpectedInputs}
	status, err := s.checkAvailability(ctx, p, availOpts)
	if err != nil {
		return domain.Payload{}, fail(req, label, err)
	}
	if err := s.requireReady(status, "Prompt API is not available"); err != nil {
		return domain.Payload{}, fail(req, label, err)
	}

	text, err := s.stream(ctx, p, opts, BuildPromptInput(req.Input, attachments), req)
	if err != nil {
		return domain.Payload{}, fail(req, label, err)
	}
	return domain.TextPayload(text), nil
}

// BuildPromptInput собирает вход языковой модели.
func BuildPromptInput(prompt string, attachments []domain.Attachment) capability.Input {
	in := capability.Input{Text: prompt}
	if len(attachments) == 0 {
		return in
	}

	parts := make([]capability.Part, 0, len(attachments)+1)
	parts = append(parts, capability.Part{Type: "text", Value: prompt})
	for i := range attachments {
		att := attachments[i]
		parts = append(parts, capability.Part{Type: string(att.Kind), Attachment: &att})
	}

	in.Messages = []capability.Message{{Role: capability.RoleUser, Content: parts}}
	return in
}
