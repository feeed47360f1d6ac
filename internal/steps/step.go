package steps

import (
	"context"

	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/engine"
)

// Step — обработчик одного типа узла.
//
// Каждый тип узла (textInput, writer, prompt, ...) реализует этот интерфейс.
type Step interface {
	// Type возвращает тип узла, который обслуживает шаг.
	Type() domain.NodeType

	// Execute выполняет узел и возвращает его результат.
	// Шаг должен проверять ctx.Done() и передавать ctx в backend.
	Execute(ctx context.Context, req *Request) (domain.Payload, error)
}

// ChunkFunc получает накопленный результат после каждого чанка потока.
type ChunkFunc func(partial domain.Payload)

// Request — входные данные для выполнения узла.
type Request struct {
	// Node — выполняемый узел. Только чтение.
	Node *domain.Node

	// Input — вход узла после подстановки {{Name}}.
	Input string

	// Results — результаты уже выполненных узлов (для вложений prompt).
	Results engine.ResultView

	// OnChunk — колбэк промежуточных результатов. Может быть nil.
	OnChunk ChunkFunc
}

// emit передаёт промежуточный текст наблюдателю.
func (r *Request) emit(text string) {
	if r.OnChunk != nil {
		r.OnChunk(domain.TextPayload(text))
	}
}
