// Package steps содержит диспетчер узлов flow.
//
// # Обзор
//
// Каждый тип узла обслуживается своим Step. Step получает узел,
// его вход после подстановки {{Name}} и результаты предыдущих узлов,
// а возвращает domain.Payload {text, attachments}.
//
// # Интерфейс Step
//
//	type Step interface {
//	    Type() domain.NodeType
//	    Execute(ctx context.Context, req *Request) (domain.Payload, error)
//	}
//
// # Registry и Dispatcher
//
//	caps := capability.NewRegistry()
//	httpbackend.New(cfg).Register(caps)
//
//	dispatcher := steps.NewDispatcher(steps.DispatcherConfig{
//	    Registry: steps.DefaultRegistry(caps),
//	})
//	payload, err := dispatcher.Dispatch(ctx, &steps.Request{Node: node, Input: input})
//
// # Типы узлов
//
// ## Input (input.go)
//
//   - textInput, pdfInput — вход без изменений, без вложений
//   - imageInput, audioInput — вход и одно вложение узла
//
// ## Writer, Rewriter, Summarizer (writing.go)
//
// Модель должна быть загружена (availability = available).
// Ответ приходит потоком; после каждого чанка OnChunk получает
// накопленный текст.
//
// ## Prompt (prompt.go)
//
// Языковая модель. Вложения выбранных узлов (selectedAttachments)
// собираются с лимитами по модальности и отправляются multimodal
// сообщением вместе с текстом.
//
// ## Proofreader (proofreader.go)
//
// Языковая модель с фиксированной системной инструкцией, один вызов.
//
// ## Translator (translator.go)
//
// Один вызов. Если модель загружается, прогресс загрузки
// передаётся в OnChunk.
//
// # Обработка ошибок
//
// Любая ошибка backend возвращается как *CapabilityError с ID и именем
// узла. Недоступность модели — *UnavailableError (errors.Is
// ErrCapabilityUnavailable). Повторов нет: решение о retry принимает
// вызывающий.
//
// # Файлы пакета
//
//   - step.go        — интерфейс Step, Request
//   - registry.go    — Registry шагов по типу узла
//   - dispatcher.go  — Dispatcher
//   - session.go     — общий цикл сессии backend
//   - attachments.go — сбор вложений для prompt
//   - normalize.go   — приведение ответа к Payload
//   - errors.go      — ошибки
package steps
