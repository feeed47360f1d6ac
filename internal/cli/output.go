package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shaiso/Synapse/internal/domain"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	// Заголовки
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	// Разделитель
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	// Строки данных
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// Line выводит строку потока выполнения.
// В JSON-режиме строки пишутся как есть (NDJSON), иначе — по одной
// строке текста на событие узла. Промежуточные streaming-события
// в текстовом режиме пропускаются.
func (o *Output) Line(line StreamLine) {
	if o.jsonMode {
		json.NewEncoder(o.w).Encode(line)
		return
	}

	switch line.Type {
	case LineProgress:
		if line.Event != nil {
			o.Event(*line.Event)
		}
	case LineComplete:
		if line.Status != "" {
			fmt.Fprintf(o.errW, "Run finished: %s\n", line.Status)
		}
		if len(line.Results) > 0 {
			o.Results(line.Results)
		}
	case LineError:
		o.Error(line.Error)
	}
}

// Event выводит событие прогресса узла в stderr.
func (o *Output) Event(ev domain.ProgressEvent) {
	switch ev.Status {
	case domain.NodeStatusRunning:
		fmt.Fprintf(o.errW, "> %s\n", ev.NodeName)
	case domain.NodeStatusCompleted:
		size := 0
		if ev.Result != nil {
			size = len(ev.Result.Text)
		}
		fmt.Fprintf(o.errW, "  %s done (%d chars)\n", ev.NodeName, size)
	case domain.NodeStatusError, domain.NodeStatusCancelled:
		fmt.Fprintf(o.errW, "  %s %s: %s\n", ev.NodeName, ev.Status, ev.Error)
	}
}

// Results выводит карту результатов, отсортированную по имени узла.
func (o *Output) Results(results map[string]domain.Payload) {
	if o.jsonMode {
		o.JSON(results)
		return
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, len(names))
	for i, name := range names {
		p := results[name]
		rows[i] = []string{name, truncate(p.Text, 60), strconv.Itoa(len(p.Attachments))}
	}
	o.Table([]string{"NODE", "TEXT", "ATTACHMENTS"}, rows)
}

// truncate укорачивает текст для таблицы и склеивает строки.
func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
