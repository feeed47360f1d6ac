package mq

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Synapse/internal/domain"
)

func delivery(t *testing.T, msgType MessageType, payload any) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(Message{ID: uuid.NewString(), Type: msgType, Payload: payload})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return amqp.Delivery{Body: body}
}

func TestDispatchRunEvent_Progress(t *testing.T) {
	runID := uuid.New()
	var got domain.ProgressEvent
	w := RunWatcher{OnProgress: func(ev domain.ProgressEvent) error {
		got = ev
		return nil
	}}

	ev := domain.ProgressEvent{NodeID: "n1", NodeName: "Writer", Status: domain.NodeStatusStreaming, Result: &domain.Payload{Text: "Hel"}}
	done, err := dispatchRunEvent(delivery(t, MessageTypeRunProgress, RunProgressPayload{RunID: runID, Event: ev}), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done {
		t.Error("progress should not finish the watch")
	}
	if got.NodeID != "n1" || got.Status != domain.NodeStatusStreaming || got.Result == nil || got.Result.Text != "Hel" {
		t.Errorf("unexpected event: %+v", got)
	}
}

func TestDispatchRunEvent_Finished(t *testing.T) {
	runID := uuid.New()
	var got RunFinishedPayload
	w := RunWatcher{OnFinished: func(p RunFinishedPayload) error {
		got = p
		return nil
	}}

	payload := RunFinishedPayload{RunID: runID, Status: domain.RunStatusFailed, FailedNodeID: "n2", Error: "boom"}
	done, err := dispatchRunEvent(delivery(t, MessageTypeRunFinished, payload), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Error("finished should end the watch")
	}
	if got != payload {
		t.Errorf("expected %+v, got %+v", payload, got)
	}
}

func TestDispatchRunEvent_HandlerError(t *testing.T) {
	stop := errors.New("client gone")
	w := RunWatcher{OnProgress: func(domain.ProgressEvent) error { return stop }}

	_, err := dispatchRunEvent(delivery(t, MessageTypeRunProgress, RunProgressPayload{}), w)
	if !errors.Is(err, stop) {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestDispatchRunEvent_SkipsUnknown(t *testing.T) {
	done, err := dispatchRunEvent(delivery(t, MessageTypeRunPending, RunPendingPayload{}), RunWatcher{})
	if err != nil || done {
		t.Errorf("unknown types should be skipped, got done=%v err=%v", done, err)
	}

	if _, err := dispatchRunEvent(amqp.Delivery{Body: []byte("{")}, RunWatcher{}); err == nil {
		t.Error("expected error for malformed body")
	}
}

func TestRoutingKeys(t *testing.T) {
	if ProgressKey("42") != "progress.42" {
		t.Errorf("unexpected progress key %q", ProgressKey("42"))
	}
	if FinishedKey("42") != "finished.42" {
		t.Errorf("unexpected finished key %q", FinishedKey("42"))
	}
}
