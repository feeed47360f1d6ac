package engine

import (
	"regexp"
	"strings"

	"github.com/shaiso/Synapse/internal/domain"
)

// placeholderPattern — плейсхолдер {{Name}}. Имя не может содержать '}'.
var placeholderPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// InputField возвращает сырое значение поля, из которого узел берёт вход.
//
//   - input-узлы          → text
//   - writer              → context
//   - prompt              → prompt
//   - остальные transform → первое непустое из text, instructions, context
func InputField(node *domain.Node) string {
	cfg := &node.Config

	switch node.Type {
	case domain.NodeTypeTextInput, domain.NodeTypePDFInput,
		domain.NodeTypeImageInput, domain.NodeTypeAudioInput:
		return cfg.Text
	case domain.NodeTypeWriter:
		return cfg.Context
	case domain.NodeTypePrompt:
		return cfg.Prompt
	case domain.NodeTypeRewriter, domain.NodeTypeSummarizer,
		domain.NodeTypeProofreader, domain.NodeTypeTranslator:
		return firstNonEmpty(cfg.Text, cfg.Instructions, cfg.Context)
	default:
		return ""
	}
}

// ResolveInput подставляет результаты upstream узлов в поле входа узла.
func ResolveInput(node *domain.Node, results ResultView) string {
	return Render(InputField(node), results)
}

// Render заменяет плейсхолдеры {{Name}} текстом из results.
//
// Правила подстановки:
//   - записи нет                         → плейсхолдер остаётся как есть
//   - текст непустой                     → подставляется текст
//   - текст пустой, но есть вложения     → плейсхолдер остаётся как есть
//   - текст пустой и вложений нет        → пустая строка
//
// Подставленный текст повторно не сканируется. Render никогда не падает.
func Render(tmpl string, results ResultView) string {
	// Быстрый путь: нет шаблонных выражений
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		name := strings.TrimSpace(sub[1])

		if results == nil {
			return match
		}
		payload, ok := results.Lookup(name)
		if !ok {
			return match
		}
		if payload.Text != "" {
			return payload.Text
		}
		if len(payload.Attachments) > 0 {
			return match
		}
		return ""
	})
}

// Placeholders возвращает имена из всех {{Name}} в строке, без повторов.
func Placeholders(tmpl string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(tmpl, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
