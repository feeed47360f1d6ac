package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Synapse/internal/domain"
)

// ErrWatchClosed возвращается, если брокер закрыл очередь наблюдателя
// раньше, чем пришло событие завершения.
var ErrWatchClosed = errors.New("watch channel closed before run finished")

// RunWatcher получает события одного run.
type RunWatcher struct {
	// OnProgress вызывается на каждое событие узла.
	OnProgress func(ev domain.ProgressEvent) error

	// OnFinished вызывается один раз, после чего WatchRun возвращается.
	OnFinished func(p RunFinishedPayload) error
}

// WatchRun подписывается на события run через временную exclusive-очередь
// и блокируется до события завершения, отмены ctx или ошибки обработчика.
//
// Очередь привязывается к progress.<run_id> и finished.<run_id>
// и удаляется брокером вместе с каналом.
func WatchRun(ctx context.Context, conn *Connection, runID uuid.UUID, w RunWatcher) error {
	ch, err := conn.OpenChannel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		"",    // name (server-named)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare watch queue: %w", err)
	}

	for _, key := range []RoutingKey{ProgressKey(runID.String()), FinishedKey(runID.String())} {
		if err := ch.QueueBind(q.Name, string(key), string(ExchangeEvents), false, nil); err != nil {
			return fmt.Errorf("bind watch queue to %s: %w", key, err)
		}
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer tag
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("consume watch queue: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return ErrWatchClosed
			}

			done, err := dispatchRunEvent(raw, w)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// dispatchRunEvent разбирает сообщение и вызывает нужный обработчик.
// Возвращает true на событии завершения.
func dispatchRunEvent(raw amqp.Delivery, w RunWatcher) (bool, error) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		return false, fmt.Errorf("unmarshal event: %w", err)
	}

	switch msg.Type {
	case MessageTypeRunProgress:
		p, err := ParsePayload[RunProgressPayload](&msg)
		if err != nil {
			return false, err
		}
		if w.OnProgress != nil {
			return false, w.OnProgress(p.Event)
		}
		return false, nil

	case MessageTypeRunFinished:
		p, err := ParsePayload[RunFinishedPayload](&msg)
		if err != nil {
			return false, err
		}
		if w.OnFinished != nil {
			return true, w.OnFinished(p)
		}
		return true, nil

	default:
		// Неизвестные типы пропускаем
		return false, nil
	}
}
