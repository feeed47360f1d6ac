// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go         — Handler с DI (хранилища, publisher, orchestrator, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - stream.go          — NDJSON-поток событий
//   - dto.go             — Data Transfer Objects (request/response)
//   - flow_handler.go    — обработчики для /flows, /validate
//   - execute_handler.go — синхронное выполнение flow
//   - run_handler.go     — обработчики для /runs
//
// API предоставляет REST endpoints для управления flows и runs.
// Выполнение доступно двумя способами: синхронно в процессе API
// с потоком событий в ответе, или асинхронно через worker.
package api
