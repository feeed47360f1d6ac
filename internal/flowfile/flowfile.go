// Package flowfile читает и пишет определения flow в JSON и YAML.
//
// Формат файла совпадает с записью редактора: {name, description, nodes, edges}.
// Поля YAML называются так же, как в JSON (sharedContext, selectedAttachments...).
package flowfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shaiso/Synapse/internal/domain"
	"gopkg.in/yaml.v3"
)

// Format — формат файла flow.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat — расширение файла не соответствует ни одному формату.
var ErrUnknownFormat = errors.New("unknown flow file format")

// FormatFromPath определяет формат по расширению. Без расширения — JSON.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", "":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Load читает flow из файла. Путь "-" означает stdin (JSON или YAML).
func Load(path string) (*domain.Flow, error) {
	if path == "-" {
		return Decode(os.Stdin, FormatYAML)
	}

	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open flow file: %w", err)
	}
	defer file.Close()

	flow, err := Decode(file, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return flow, nil
}

// Decode читает flow в указанном формате и нормализует его.
//
// YAML сначала разбирается в дерево и перекодируется в JSON, поэтому
// имена полей определяются json-тегами domain.
func Decode(r io.Reader, format Format) (*domain.Flow, error) {
	var data []byte

	switch format {
	case FormatJSON:
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read flow: %w", err)
		}
		data = raw
	case FormatYAML:
		var tree any
		if err := yaml.NewDecoder(r).Decode(&tree); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("flow file is empty")
			}
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		raw, err := json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		data = raw
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	// Лишние поля редактора (позиции узлов и т.п.) игнорируются
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse flow: %w", err)
	}

	flow := &domain.Flow{
		Name:        doc.Name,
		Description: doc.Description,
		Nodes:       doc.Nodes,
		Edges:       doc.Edges,
	}
	flow.Normalize()
	return flow, nil
}

// Encode пишет flow в указанном формате. Служебные поля (id, даты) не пишутся.
func Encode(w io.Writer, flow *domain.Flow, format Format) error {
	doc := document{
		Name:        flow.Name,
		Description: flow.Description,
		Nodes:       flow.Nodes,
		Edges:       flow.Edges,
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		// JSON → дерево, чтобы YAML получил те же имена полей
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal flow: %w", err)
		}
		var tree yaml.Node
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return fmt.Errorf("convert flow: %w", err)
		}
		resetStyle(&tree)

		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&tree); err != nil {
			return fmt.Errorf("write yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// Save пишет flow в файл, формат определяется по расширению.
func Save(path string, flow *domain.Flow) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, flow, format); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// document — то, что хранится в файле.
type document struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Nodes       []domain.Node `json:"nodes"`
	Edges       []domain.Edge `json:"edges"`
}

// resetStyle сбрасывает стиль, унаследованный от JSON ({...}, [...], "...").
// Строки, похожие на числа или bool, encoder всё равно возьмёт в кавычки по тегу !!str.
func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		resetStyle(c)
	}
}
