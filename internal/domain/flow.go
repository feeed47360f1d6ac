package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultFlowName — имя flow, если пользователь не задал своё.
const DefaultFlowName = "Untitled flow"

// Flow — граф шагов обработки, собранный во внешнем редакторе.
//
// Flow хранится как запись {name, description, nodes, edges}.
// Движок получает этот граф на вход и никогда не меняет его структуру.
type Flow struct {
	// ID — уникальный идентификатор flow.
	ID uuid.UUID `json:"id"`

	// Name — имя flow для пользователя.
	Name string `json:"name"`

	// Description — описание назначения flow.
	Description string `json:"description,omitempty"`

	// Nodes — узлы графа.
	Nodes []Node `json:"nodes"`

	// Edges — направленные зависимости между узлами.
	Edges []Edge `json:"edges"`

	// CreatedAt — время создания flow.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize приводит flow к каноническому виду:
// пустое имя заменяется на DefaultFlowName, nil-списки — на пустые.
func (f *Flow) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		f.Name = DefaultFlowName
	}
	f.Description = strings.TrimSpace(f.Description)
	if f.Nodes == nil {
		f.Nodes = []Node{}
	}
	if f.Edges == nil {
		f.Edges = []Edge{}
	}
	for i := range f.Nodes {
		f.Nodes[i].Type = ParseNodeType(string(f.Nodes[i].Type))
	}
}

// NodeByID возвращает узел по ID или nil.
func (f *Flow) NodeByID(id string) *Node {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}
	return nil
}

// Node — вершина графа.
type Node struct {
	// ID — идентификатор узла, уникален в рамках flow.
	ID string `json:"id"`

	// Type — тип узла из закрытого набора NodeType.
	Type NodeType `json:"type"`

	// Name — имя узла. Ключ в карте результатов и в плейсхолдерах {{Name}}.
	// Уникальность проверяет валидатор, а не система типов.
	Name string `json:"name"`

	// Config — настройки, специфичные для типа узла.
	Config NodeConfig `json:"config"`
}

// Edge — направленная зависимость source → target.
type Edge struct {
	// ID — идентификатор ребра (необязателен, задаётся редактором).
	ID string `json:"id,omitempty"`

	// Source — ID узла-источника.
	Source string `json:"source"`

	// Target — ID зависимого узла.
	Target string `json:"target"`
}

// NodeConfig — настройки узла.
//
// Набор полей общий для всех типов; каждый тип читает только свои.
// Во время выполнения конфигурация доступна только на чтение.
type NodeConfig struct {
	// Text — исходный текст (input-узлы) или текст для трансформации.
	Text string `json:"text,omitempty"`

	// Context — контекст/задание для writer.
	Context string `json:"context,omitempty"`

	// Instructions — дополнительные инструкции (summarizer и др.).
	Instructions string `json:"instructions,omitempty"`

	// ContextHint — подсказка для summarizer, если Instructions пусты.
	ContextHint string `json:"contextHint,omitempty"`

	// Prompt — текст запроса для prompt-узла.
	Prompt string `json:"prompt,omitempty"`

	// SystemPrompt — системная инструкция для prompt-узла.
	SystemPrompt string `json:"systemPrompt,omitempty"`

	// Tone, Format, Length — параметры writer/rewriter/summarizer.
	Tone   string `json:"tone,omitempty"`
	Format string `json:"format,omitempty"`
	Length string `json:"length,omitempty"`

	// SummaryType — тип выжимки: key-points, teaser, headline, tldr.
	SummaryType string `json:"type,omitempty"`

	// SharedContext — общий контекст сессии.
	SharedContext string `json:"sharedContext,omitempty"`

	// Temperature и TopK — параметры генерации prompt-узла.
	// Нулевое значение означает "по умолчанию".
	Temperature float64 `json:"temperature,omitempty"`
	TopK        int     `json:"topK,omitempty"`

	// SourceLanguage и TargetLanguage — языковая пара translator.
	SourceLanguage string `json:"sourceLanguage,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`

	// SelectedAttachments — имена узлов, чьи вложения передаются в prompt.
	SelectedAttachments []string `json:"selectedAttachments,omitempty"`

	// ImageAttachmentLimit и AudioAttachmentLimit — лимиты вложений
	// по модальности. 0 означает "без ограничений".
	ImageAttachmentLimit int `json:"imageAttachmentLimit,omitempty"`
	AudioAttachmentLimit int `json:"audioAttachmentLimit,omitempty"`

	// Files — исходные файлы pdf-узла (для валидации; текст уже извлечён).
	Files []FileRef `json:"files,omitempty"`

	// Attachment — привязанный файл image/audio узла.
	Attachment *Attachment `json:"attachment,omitempty"`
}

// FileRef — описание исходного файла pdf-узла.
type FileRef struct {
	Name     string `json:"name"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Handle   string `json:"fileHandle,omitempty"`
}
