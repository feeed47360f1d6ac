package steps

import (
	"github.com/shaiso/Synapse/internal/capability"
	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/engine"
)

// CollectAttachments собирает вложения выбранных узлов для prompt.
//
// Для каждого имени из selectedAttachments берутся вложения его результата.
// Вложения без файла и имена без результата пропускаются. Каждой модальности
// соответствует свой лимит (0 — без ограничений). Вложения получают
// SourceNode — имя узла, откуда они взяты.
func CollectAttachments(node *domain.Node, results engine.ResultView) []domain.Attachment {
	cfg := &node.Config
	if len(cfg.SelectedAttachments) == 0 || results == nil {
		return nil
	}

	limits := map[domain.AttachmentKind]int{
		domain.AttachmentImage: engine.NormalizeAttachmentLimit(cfg.ImageAttachmentLimit),
		domain.AttachmentAudio: engine.NormalizeAttachmentLimit(cfg.AudioAttachmentLimit),
	}
	counts := make(map[domain.AttachmentKind]int, len(limits))

	var out []domain.Attachment
	for _, name := range cfg.SelectedAttachments {
		if name == "" {
			continue
		}
		payload, ok := results.Lookup(name)
		if !ok {
			continue
		}

		for _, att := range payload.Attachments {
			if !att.HasFile() {
				continue
			}
			if limit := limits[att.Kind]; limit > 0 && counts[att.Kind] >= limit {
				continue
			}
			counts[att.Kind]++

			att.SourceNode = name
			out = append(out, att)
		}
	}

	return out
}

// expectedInputs — модальности multimodal запроса: текст и типы вложений.
func expectedInputs(attachments []domain.Attachment) []capability.ExpectedInput {
	if len(attachments) == 0 {
		return nil
	}

	var hasImage, hasAudio bool
	for _, att := range attachments {
		switch att.Kind {
		case domain.AttachmentImage:
			hasImage = true
		case domain.AttachmentAudio:
			hasAudio = true
		}
	}

	inputs := []capability.ExpectedInput{{Type: "text", Languages: []string{"en"}}}
	if hasImage {
		inputs = append(inputs, capability.ExpectedInput{Type: string(domain.AttachmentImage)})
	}
	if hasAudio {
		inputs = append(inputs, capability.ExpectedInput{Type: string(domain.AttachmentAudio)})
	}
	return inputs
}
