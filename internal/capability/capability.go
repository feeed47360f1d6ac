package capability

import (
	"context"
	"iter"
	"strings"

	"github.com/shaiso/Synapse/internal/domain"
)

// Kind — имя capability backend.
type Kind string

const (
	KindWriter        Kind = "writer"
	KindRewriter      Kind = "rewriter"
	KindSummarizer    Kind = "summarizer"
	KindLanguageModel Kind = "language-model"
	KindTranslator    Kind = "translator"
)

// Kinds возвращает все известные capability.
func Kinds() []Kind {
	return []Kind{KindWriter, KindRewriter, KindSummarizer, KindLanguageModel, KindTranslator}
}

// KindFor возвращает capability, которой обслуживается тип узла.
// prompt и proofreader работают через языковую модель.
func KindFor(t domain.NodeType) (Kind, bool) {
	switch t {
	case domain.NodeTypeWriter:
		return KindWriter, true
	case domain.NodeTypeRewriter:
		return KindRewriter, true
	case domain.NodeTypeSummarizer:
		return KindSummarizer, true
	case domain.NodeTypePrompt, domain.NodeTypeProofreader:
		return KindLanguageModel, true
	case domain.NodeTypeTranslator:
		return KindTranslator, true
	default:
		return "", false
	}
}

// Availability — состояние capability.
type Availability string

const (
	Available    Availability = "available"
	Downloadable Availability = "downloadable"
	Downloading  Availability = "downloading"
	Unavailable  Availability = "unavailable"
)

// ParseAvailability приводит ответ backend к Availability.
// Учитывает старые имена состояний: readily, ready, after-download, pending.
func ParseAvailability(s string) Availability {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available", "readily", "ready":
		return Available
	case "downloadable", "after-download", "needsdownload":
		return Downloadable
	case "downloading", "pending":
		return Downloading
	default:
		return Unavailable
	}
}

// IsReady — модель загружена и готова к работе.
func (a Availability) IsReady() bool {
	return a == Available
}

// NeedsDownload — модель можно использовать после загрузки.
func (a Availability) NeedsDownload() bool {
	return a == Downloadable || a == Downloading
}

// ExpectedInput — модальность входа, которую заявляет сессия.
type ExpectedInput struct {
	Type      string   `json:"type"`
	Languages []string `json:"languages,omitempty"`
}

// Options — параметры проверки доступности и создания сессии.
//
// Каждая capability читает только свои поля.
type Options struct {
	// writer, rewriter, summarizer
	Tone          string `json:"tone,omitempty"`
	Format        string `json:"format,omitempty"`
	Length        string `json:"length,omitempty"`
	Type          string `json:"type,omitempty"`
	SharedContext string `json:"sharedContext,omitempty"`

	// translator
	SourceLanguage string `json:"sourceLanguage,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`

	// language-model
	Temperature    float64         `json:"temperature,omitempty"`
	TopK           int             `json:"topK,omitempty"`
	SystemPrompt   string          `json:"systemPrompt,omitempty"`
	ExpectedInputs []ExpectedInput `json:"expectedInputs,omitempty"`

	// Monitor получает прогресс загрузки модели (0..1).
	Monitor func(progress float64) `json:"-"`
}

// Роли сообщений multimodal запроса.
const (
	RoleUser = "user"
)

// Part — часть содержимого сообщения: текст или вложение.
type Part struct {
	Type       string             `json:"type"` // text, image, audio
	Value      string             `json:"value,omitempty"`
	Attachment *domain.Attachment `json:"attachment,omitempty"`
}

// Message — сообщение multimodal запроса.
type Message struct {
	Role    string `json:"role"`
	Content []Part `json:"content"`
}

// Input — вход одного вызова генерации.
type Input struct {
	// Text — текст запроса.
	Text string `json:"text"`

	// Context — контекст конкретного вызова (summarizer).
	Context string `json:"context,omitempty"`

	// Messages — multimodal запрос. Если задан, Text дублирует текстовую часть.
	Messages []Message `json:"messages,omitempty"`
}

// Provider — capability backend: проверка доступности и фабрика сессий.
type Provider interface {
	Availability(ctx context.Context, opts Options) (Availability, error)
	CreateSession(ctx context.Context, opts Options) (Session, error)
}

// Session — сессия backend. Создаётся на один вызов узла.
type Session interface {
	// Generate выполняет one-shot генерацию.
	Generate(ctx context.Context, in Input) (string, error)

	// GenerateStreaming возвращает последовательность текстовых дельт.
	// Ошибка завершает последовательность.
	GenerateStreaming(ctx context.Context, in Input) iter.Seq2[string, error]

	// Close освобождает сессию.
	Close() error
}
