package pushnotification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskpilot/taskpilot/internal/eventbus"
	"github.com/taskpilot/taskpilot/internal/task"
)

// Dispatcher watches the event bus and turns lifecycle milestones into
// push notifications: a task entering review (the agent finished) and a
// relay failure.
type Dispatcher struct {
	eventBus *eventbus.Bus
	taskRepo task.Repository
	sender   *Sender
}

func NewDispatcher(eventBus *eventbus.Bus, taskRepo task.Repository, sender *Sender) *Dispatcher {
	return &Dispatcher{
		eventBus: eventBus,
		taskRepo: taskRepo,
		sender:   sender,
	}
}

// Start blocks until ctx is cancelled. Run it in its own goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.eventBus.Subscribe(256)
	defer d.eventBus.Unsubscribe(subID)

	slog.InfoContext(ctx, "push notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "push notification dispatcher stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			switch event.Type {
			case eventbus.TypeTaskStatusChanged:
				if event.Metadata["to"] == string(task.StatusReview) {
					d.handleEnteredReview(ctx, event)
				}
			case eventbus.TypeTaskProcessError:
				d.handleProcessError(ctx, event)
			}
		}
	}
}

func (d *Dispatcher) handleEnteredReview(ctx context.Context, event *eventbus.Event) {
	t, err := d.taskRepo.Get(ctx, event.ResourceID)
	if err != nil {
		slog.ErrorContext(ctx, "push dispatcher: failed to get task", "id", event.ResourceID, "error", err)
		return
	}
	d.sender.SendToAll(ctx, &NotificationPayload{
		Title: "Task ready for review",
		Body:  t.Title,
		URL:   fmt.Sprintf("/boards/%s/tasks/%s", t.BoardID, t.ID),
		Tag:   t.ID,
	})
}

func (d *Dispatcher) handleProcessError(ctx context.Context, event *eventbus.Event) {
	body := event.Payload
	if t, err := d.taskRepo.Get(ctx, event.ResourceID); err == nil {
		body = fmt.Sprintf("%s: %s", t.Title, event.Payload)
	}
	d.sender.SendToAll(ctx, &NotificationPayload{
		Title: "Agent run failed",
		Body:  body,
		Tag:   event.ResourceID,
	})
}
