package engine

import (
	"slices"

	"github.com/shaiso/Synapse/internal/domain"
)

// DefaultAttachmentLimit — лимит вложений, если в конфиге задано отрицательное значение.
const DefaultAttachmentLimit = 1

// NormalizeAttachmentLimit приводит лимит к допустимому значению.
// 0 означает "без ограничений".
func NormalizeAttachmentLimit(limit int) int {
	if limit < 0 {
		return DefaultAttachmentLimit
	}
	return limit
}

// attachmentSource — upstream image/audio узел, подключённый к prompt.
type attachmentSource struct {
	name string
	kind domain.AttachmentKind
}

// SyncAttachmentSelections согласует selectedAttachments prompt-узлов с графом.
//
// Выбор сужается до image/audio узлов, напрямую подключённых к prompt,
// затем дополняется остальными подключёнными узлами в пределах лимитов
// по модальности. Возвращает новый список узлов; входной не меняется.
func SyncAttachmentSelections(nodes []domain.Node, edges []domain.Edge) []domain.Node {
	byID := make(map[string]*domain.Node, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}

	out := make([]domain.Node, len(nodes))
	copy(out, nodes)

	for i := range out {
		node := &out[i]
		if node.Type != domain.NodeTypePrompt {
			continue
		}

		sources := connectedAttachmentSources(node.ID, edges, byID)

		current := make([]string, 0, len(node.Config.SelectedAttachments))
		for _, name := range node.Config.SelectedAttachments {
			if slices.ContainsFunc(sources, func(s attachmentSource) bool { return s.name == name }) {
				current = append(current, name)
			}
		}

		next := ensureSelection(&node.Config, sources, current)
		if slices.Equal(next, node.Config.SelectedAttachments) {
			continue
		}
		node.Config.SelectedAttachments = next
	}

	return out
}

func connectedAttachmentSources(promptID string, edges []domain.Edge, byID map[string]*domain.Node) []attachmentSource {
	var sources []attachmentSource
	for _, e := range edges {
		if e.Target != promptID {
			continue
		}
		src := byID[e.Source]
		if src == nil || !src.Type.IsAttachmentSource() {
			continue
		}
		name := src.Name
		if name == "" {
			name = src.ID
		}
		kind := domain.AttachmentAudio
		if src.Type == domain.NodeTypeImageInput {
			kind = domain.AttachmentImage
		}
		sources = append(sources, attachmentSource{name: name, kind: kind})
	}
	return sources
}

// ensureSelection сохраняет текущий выбор и добирает недостающие
// источники, пока не исчерпаны лимиты по модальности.
func ensureSelection(cfg *domain.NodeConfig, sources []attachmentSource, current []string) []string {
	limits := map[domain.AttachmentKind]int{
		domain.AttachmentImage: NormalizeAttachmentLimit(cfg.ImageAttachmentLimit),
		domain.AttachmentAudio: NormalizeAttachmentLimit(cfg.AudioAttachmentLimit),
	}
	counts := make(map[domain.AttachmentKind]int, 2)

	next := make([]string, 0, len(sources))
	add := func(src attachmentSource) {
		limit := limits[src.kind]
		if limit > 0 && counts[src.kind] >= limit {
			return
		}
		next = append(next, src.name)
		counts[src.kind]++
	}

	for _, name := range current {
		idx := slices.IndexFunc(sources, func(s attachmentSource) bool { return s.name == name })
		if idx < 0 || slices.Contains(next, name) {
			continue
		}
		add(sources[idx])
	}
	for _, src := range sources {
		if slices.Contains(next, src.name) {
			continue
		}
		add(src)
	}

	return next
}
