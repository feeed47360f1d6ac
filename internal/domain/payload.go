package domain

import (
	"bytes"
	"encoding/json"
)

// AttachmentKind — модальность вложения.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentAudio AttachmentKind = "audio"
)

// Attachment — ссылка на бинарные данные, которую движок только пересылает.
//
// FileHandle непрозрачен: им владеет input-узел/редактор,
// движок никогда не читает и не копирует сами байты.
type Attachment struct {
	Kind       AttachmentKind `json:"kind"`
	Name       string         `json:"name"`
	Size       int64          `json:"size,omitempty"`
	MimeType   string         `json:"mimeType,omitempty"`
	FileHandle string         `json:"fileHandle,omitempty"`

	// SourceNode — имя узла, откуда взято вложение. Проставляется
	// диспетчером при сборе вложений для prompt-узла.
	SourceNode string `json:"sourceNode,omitempty"`
}

// HasFile проверяет, привязан ли к вложению файл.
func (a *Attachment) HasFile() bool {
	return a != nil && a.FileHandle != ""
}

// Payload — результат выполнения узла: текст и вложения.
type Payload struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
}

// TextPayload оборачивает строку в Payload без вложений.
func TextPayload(text string) Payload {
	return Payload{Text: text, Attachments: []Attachment{}}
}

// Normalize возвращает копию с гарантированно не-nil списком вложений.
// Пустые вложения (без kind и без файла) отбрасываются.
func (p Payload) Normalize() Payload {
	out := Payload{Text: p.Text, Attachments: make([]Attachment, 0, len(p.Attachments))}
	for _, a := range p.Attachments {
		if a.Kind == "" && a.FileHandle == "" {
			continue
		}
		out.Attachments = append(out.Attachments, a)
	}
	return out
}

// IsEmpty возвращает true, если нет ни текста, ни вложений.
func (p Payload) IsEmpty() bool {
	return p.Text == "" && len(p.Attachments) == 0
}

// UnmarshalJSON принимает как объект {text, attachments}, так и голую строку.
func (p *Payload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*p = TextPayload(text)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*p = TextPayload("")
		return nil
	}

	type raw Payload
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*p = Payload(r).Normalize()
	return nil
}
