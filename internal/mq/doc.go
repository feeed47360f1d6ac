// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений из очередей
//   - events.go     — подписка на события одного run (WatchRun)
//
// Типы сообщений:
//   - run.pending   — новый run ожидает выполнения
//   - run.progress  — событие узла (running, streaming, completed, error)
//   - run.finished  — run завершён
//
// Exchanges:
//   - synapse.runs    — очередь runs для worker
//   - synapse.events  — прогресс runs (topic)
//   - synapse.dlq     — dead letter queue
package mq
