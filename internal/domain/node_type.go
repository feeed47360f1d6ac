package domain

// NodeType — тип узла. Набор закрыт.
type NodeType string

// Типы узлов.
const (
	NodeTypeTextInput   NodeType = "textInput"
	NodeTypePDFInput    NodeType = "pdfInput"
	NodeTypeImageInput  NodeType = "imageInput"
	NodeTypeAudioInput  NodeType = "audioInput"
	NodeTypeWriter      NodeType = "writer"
	NodeTypeRewriter    NodeType = "rewriter"
	NodeTypeSummarizer  NodeType = "summarizer"
	NodeTypePrompt      NodeType = "prompt"
	NodeTypeProofreader NodeType = "proofreader"
	NodeTypeTranslator  NodeType = "translator"
)

// legacyTextInput — старое имя textInput, которое ещё встречается в сохранённых flow.
const legacyTextInput = "inputNode"

var knownNodeTypes = map[NodeType]bool{
	NodeTypeTextInput:   true,
	NodeTypePDFInput:    true,
	NodeTypeImageInput:  true,
	NodeTypeAudioInput:  true,
	NodeTypeWriter:      true,
	NodeTypeRewriter:    true,
	NodeTypeSummarizer:  true,
	NodeTypePrompt:      true,
	NodeTypeProofreader: true,
	NodeTypeTranslator:  true,
}

// ParseNodeType приводит строку к NodeType, учитывая legacy-алиас.
// Неизвестные значения возвращаются как есть — их отвергнет валидатор.
func ParseNodeType(s string) NodeType {
	if s == legacyTextInput {
		return NodeTypeTextInput
	}
	return NodeType(s)
}

// IsKnown проверяет, входит ли тип в закрытый набор.
func (t NodeType) IsKnown() bool {
	return knownNodeTypes[t]
}

// IsInput возвращает true для input-узлов (источников данных).
func (t NodeType) IsInput() bool {
	switch t {
	case NodeTypeTextInput, NodeTypePDFInput, NodeTypeImageInput, NodeTypeAudioInput:
		return true
	default:
		return false
	}
}

// IsAttachmentSource возвращает true для узлов, отдающих бинарные вложения.
func (t NodeType) IsAttachmentSource() bool {
	return t == NodeTypeImageInput || t == NodeTypeAudioInput
}

// String возвращает строковое представление NodeType.
func (t NodeType) String() string {
	return string(t)
}

// NodeTypes возвращает все известные типы узлов в фиксированном порядке.
func NodeTypes() []NodeType {
	return []NodeType{
		NodeTypeTextInput,
		NodeTypePDFInput,
		NodeTypeImageInput,
		NodeTypeAudioInput,
		NodeTypeWriter,
		NodeTypeRewriter,
		NodeTypeSummarizer,
		NodeTypePrompt,
		NodeTypeProofreader,
		NodeTypeTranslator,
	}
}
