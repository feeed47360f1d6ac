package steps

import (
	"context"

	"github.com/shaiso/Synapse/internal/domain"
)

// TextInputStep — текстовый input-узел. Отдаёт вход как есть.
type TextInputStep struct{}

// NewTextInputStep создаёт новый TextInputStep.
func NewTextInputStep() *TextInputStep {
	return &TextInputStep{}
}

// Type возвращает тип узла.
func (s *TextInputStep) Type() domain.NodeType {
	return domain.NodeTypeTextInput
}

// Execute возвращает вход узла.
func (s *TextInputStep) Execute(ctx context.Context, req *Request) (domain.Payload, error) {
	if err := ctx.Err(); err != nil {
		return domain.Payload{}, err
	}
	return domain.TextPayload(req.Input), nil
}

// PDFInputStep — pdf-узел. Текст уже извлечён редактором до запуска.
type PDFInputStep struct{}

// NewPDFInputStep создаёт новый PDFInputStep.
func NewPDFInputStep() *PDFInputStep {
	return &PDFInputStep{}
}

// Type возвращает тип узла.
func (s *PDFInputStep) Type() domain.NodeType {
	return domain.NodeTypePDFInput
}

// Execute возвращает извлечённый текст без вложений.
func (s *PDFInputStep) Execute(ctx context.Context, req *Request) (domain.Payload, error) {
	if err := ctx.Err(); err != nil {
		return domain.Payload{}, err
	}
	return domain.TextPayload(req.Input), nil
}

// AttachmentInputStep — image/audio узел. Источник вложения, не текста.
type AttachmentInputStep struct {
	nodeType domain.NodeType
}

// NewAttachmentInputStep создаёт шаг для imageInput или audioInput.
func NewAttachmentInputStep(nodeType domain.NodeType) *AttachmentInputStep {
	return &AttachmentInputStep{nodeType: nodeType}
}

// Type возвращает тип узла.
func (s *AttachmentInputStep) Type() domain.NodeType {
	return s.nodeType
}

// Execute возвращает копию привязанного вложения.
// Kind проставляется по типу узла, если редактор его не задал.
func (s *AttachmentInputStep) Execute(ctx context.Context, req *Request) (domain.Payload, error) {
	if err := ctx.Err(); err != nil {
		return domain.Payload{}, err
	}

	out := domain.TextPayload(req.Input)
	if att := req.Node.Config.Attachment; att != nil {
		copied := *att
		if copied.Kind == "" {
			copied.Kind = s.kind()
		}
		out.Attachments = append(out.Attachments, copied)
	}
	return out, nil
}

func (s *AttachmentInputStep) kind() domain.AttachmentKind {
	if s.nodeType == domain.NodeTypeImageInput {
		return domain.AttachmentImage
	}
	return domain.AttachmentAudio
}
