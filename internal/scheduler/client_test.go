package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"outreach_backend/platform/logger"
)

func newTestClient(t *testing.T) (*Client, *asynq.Inspector) {
	t.Helper()
	mr := miniredis.RunT(t)
	opt := asynq.RedisClientOpt{Addr: mr.Addr()}
	client := NewClientWithOpt(opt, "outreach", logger.New("test"))
	t.Cleanup(func() { client.Close() })
	inspector := asynq.NewInspector(opt)
	t.Cleanup(func() { inspector.Close() })
	return client, inspector
}

func testPayload() ContactAttemptPayload {
	return ContactAttemptPayload{
		TriggerID:      uuid.NewString(),
		OrganizationID: uuid.New(),
		ContactID:      uuid.New(),
		Phone:          "+12025550123",
	}
}

func TestEnqueueContactAttempt(t *testing.T) {
	client, inspector := newTestClient(t)
	p := testPayload()

	if err := client.EnqueueContactAttempt(context.Background(), p); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	tasks, err := inspector.ListPendingTasks("outreach")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(tasks))
	}

	decoded, err := ParseContactAttemptPayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if decoded.TriggerID != p.TriggerID || decoded.ContactID != p.ContactID {
		t.Fatalf("payload round trip mismatch: %+v", decoded)
	}
}

func TestEnqueueContactAttemptDeduplicates(t *testing.T) {
	client, inspector := newTestClient(t)
	p := testPayload()

	if err := client.EnqueueContactAttempt(context.Background(), p); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	// The same trigger delivered again must be absorbed, not duplicated.
	if err := client.EnqueueContactAttempt(context.Background(), p); err != nil {
		t.Fatalf("duplicate enqueue should be a no-op: %v", err)
	}

	tasks, err := inspector.ListPendingTasks("outreach")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("pending tasks = %d, want 1 after duplicate trigger", len(tasks))
	}
}

func TestScheduleContactAttempt(t *testing.T) {
	client, inspector := newTestClient(t)
	p := testPayload()
	p.AttemptNumber = 2

	runAt := time.Now().Add(30 * time.Minute)
	if err := client.ScheduleContactAttempt(context.Background(), p, runAt); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	tasks, err := inspector.ListScheduledTasks("outreach")
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("scheduled tasks = %d, want 1", len(tasks))
	}
	if got := tasks[0].NextProcessAt; got.Before(runAt.Add(-time.Minute)) || got.After(runAt.Add(time.Minute)) {
		t.Fatalf("next process at = %v, want about %v", got, runAt)
	}
}

func TestScheduleSameAttemptTwice(t *testing.T) {
	client, inspector := newTestClient(t)
	p := testPayload()
	p.AttemptNumber = 2

	runAt := time.Now().Add(time.Hour)
	if err := client.ScheduleContactAttempt(context.Background(), p, runAt); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := client.ScheduleContactAttempt(context.Background(), p, runAt); err != nil {
		t.Fatalf("duplicate schedule should be a no-op: %v", err)
	}

	tasks, err := inspector.ListScheduledTasks("outreach")
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("scheduled tasks = %d, want 1", len(tasks))
	}
}
