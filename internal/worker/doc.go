// Package worker выполняет runs, сохранённые через API.
//
// # Обзор
//
// Worker — stateless компонент системы Synapse. API создаёт run в статусе
// PENDING и публикует run.pending, worker забирает его и выполняет flow
// целиком в своём процессе:
//
//   - Получение runs из очереди RabbitMQ (event-driven)
//   - Периодическая проверка PENDING runs в БД (polling fallback)
//   - Атомарный захват run (PENDING → RUNNING, UPDATE ... WHERE status)
//   - Выполнение через orchestrator.Orchestrator
//   - Публикация событий узлов (run.progress) и итога (run.finished)
//
// Без RabbitMQ worker работает только через polling.
//
// # Использование
//
//	w := worker.New(worker.Config{
//	    RunRepo:      runRepo,
//	    FlowRepo:     flowRepo,
//	    Publisher:    publisher,
//	    Conn:         mqConn,
//	    Orchestrator: orch,
//	    Logger:       logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Обработка run
//
//  1. Загрузка run из БД, проверка статуса PENDING
//  2. MarkRunning; если run уже забран, сообщение подтверждается
//  3. Загрузка flow, построение RunState (валидация и диапазон)
//  4. Выполнение; каждое событие узла уходит в synapse.events
//  5. Успех → SUCCEEDED с картой результатов
//  6. Ошибка узла → FAILED с failed_node_id и результатами до ошибки
//  7. Остановка worker → CANCELLED
//  8. Истёк RUN_TIMEOUT → FAILED, узел получает событие error
//
// Итог сохраняется только если run всё ещё RUNNING с тем же started_at.
// Если recovery успел пометить run брошенным, итог worker отбрасывается
// и run.finished повторно не публикуется.
//
// Результаты упавшего run сохраняются, чтобы retry мог
// продолжить с упавшего узла без пересчёта upstream.
package worker
