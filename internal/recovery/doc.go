// Package recovery завершает runs, брошенные упавшими workers.
//
// Reaper периодически ищет runs, которые находятся в RUNNING дольше
// порога, и переводит их в FAILED с ошибкой AbandonedError. Такой run
// можно повторить через POST /api/v1/runs/{id}/retry: без узла ошибки
// повторяется исходный диапазон.
//
// Использование:
//
//	reaper := recovery.New(recovery.Config{
//	    RunRepo:    runRepo,
//	    Leader:     repo.NewAdvisoryLock(pool, recovery.LockKey),
//	    Publisher:  publisher, // опционально
//	    StaleAfter: time.Hour,
//	    Logger:     logger,
//	})
//	go reaper.Run(ctx)
//
// Leader Election:
//
// Reaper запускается в каждом worker, но тик выполняет только тот,
// кто держит pg_try_advisory_lock с ключом LockKey.
package recovery
