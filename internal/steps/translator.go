package steps

import (
	"context"
	"fmt"
	"math"

	"github.com/shaiso/Synapse/internal/capability"
	"github.com/shaiso/Synapse/internal/domain"
)

// Языковая пара по умолчанию.
const (
	defaultSourceLanguage = "en"
	defaultTargetLanguage = "es"
)

// TranslatorStep — перевод текста.
//
// Конфигурация: sourceLanguage, targetLanguage.
// Если модель ещё не загружена, шаг дожидается загрузки
// и сообщает её прогресс как промежуточный результат.
type TranslatorStep struct {
	backend
}

// NewTranslatorStep создаёт новый TranslatorStep.
func NewTranslatorStep(caps *capability.Registry) *TranslatorStep {
	return &TranslatorStep{backend{caps: caps, kind: capability.KindTranslator}}
}

// Type возвращает тип узла.
func (s *TranslatorStep) Type() domain.NodeType {
	return domain.NodeTypeTranslator
}

// Execute переводит текст одним вызовом.
func (s *TranslatorStep) Execute(ctx context.Context, req *Request) (domain.Payload, error) {
	const label = "Translator"
	cfg := &req.Node.Config

	opts := capability.Options{
		SourceLanguage: orDefault(cfg.SourceLanguage, defaultSourceLanguage),
		TargetLanguage: orDefault(cfg.TargetLanguage, defaultTargetLanguage),
	}

	p, err := s.provider()
	if err != nil {
		return domain.Payload{}, fail(req, label, err)
	}

	status, err := s.checkAvailability(ctx, p, opts)
	if err != nil {
		return domain.Payload{}, fail(req, label, err)
	}
	if !status.IsReady() && !status.NeedsDownload() {
		msg := fmt.Sprintf("Translation for %s → %s is not available (status: %s)",
			opts.SourceLanguage, opts.TargetLanguage, status)
		return domain.Payload{}, fail(req, label, &UnavailableError{Kind: s.kind, Status: status, Message: msg})
	}

	download := status.NeedsDownload()
	if download {
		opts.Monitor = func(progress float64) {
			req.emit(fmt.Sprintf("Downloading translation model... %d%%", downloadPercent(progress)))
		}
	}

	sess, err := p.CreateSession(ctx, opts)
	if err != nil {
		return domain.Payload{}, fail(req, label, err)
	}
	defer sess.Close()

	if download {
		req.emit("Model ready. Starting translation...")
	}

	text, err := s.generate(ctx, sess, capability.Input{Text: req.Input}, req)
	if err != nil {
		return domain.Payload{}, fail(req, label, err)
	}
	return domain.TextPayload(text), nil
}

// downloadPercent переводит прогресс в проценты 0..100.
// Значения до 1 считаются долей, больше 1 — уже процентами.
func downloadPercent(progress float64) int {
	if math.IsNaN(progress) || math.IsInf(progress, 0) {
		return 0
	}
	if progress <= 1 {
		progress *= 100
	}
	return int(math.Max(0, math.Min(100, math.Round(progress))))
}
