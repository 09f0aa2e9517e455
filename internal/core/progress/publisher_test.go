package progress

import (
	"testing"

	"github.com/joefoxing/lyriq/internal/core/job"
)

// TestPublishFanOut verifies all subscribers of a job receive an event.
func TestPublishFanOut(t *testing.T) {
	p := NewPublisher(4)
	a := p.Subscribe("j1")
	b := p.Subscribe("j1")
	other := p.Subscribe("j2")

	p.Publish(Event{JobID: "j1", Status: job.StatusProcessing, Progress: 10})

	for _, sub := range []*Subscription{a, b} {
		ev := <-sub.Events
		if ev.Progress != 10 || ev.Seq != 1 {
			t.Fatalf("event = %+v", ev)
		}
	}
	select {
	case ev := <-other.Events:
		t.Fatalf("wrong-job subscriber got %+v", ev)
	default:
	}
}

// TestPublishSequenceIncreases verifies per-job sequence numbering.
func TestPublishSequenceIncreases(t *testing.T) {
	p := NewPublisher(8)
	sub := p.Subscribe("j1")

	p.Publish(Event{JobID: "j1", Status: job.StatusProcessing, Progress: 10})
	p.Publish(Event{JobID: "j1", Status: job.StatusProcessing, Progress: 40})
	p.Publish(Event{JobID: "j2", Status: job.StatusProcessing, Progress: 50})
	p.Publish(Event{JobID: "j1", Status: job.StatusProcessing, Progress: 70})

	var last uint64
	for i := 0; i < 3; i++ {
		ev := <-sub.Events
		if ev.Seq <= last {
			t.Fatalf("seq not increasing: %d after %d", ev.Seq, last)
		}
		last = ev.Seq
	}
	if last != 3 {
		t.Fatalf("last seq = %d, want 3 (per-job numbering)", last)
	}
}

// TestTerminalEventClosesStream verifies subscriptions close after terminal
// delivery and the registry entry is removed.
func TestTerminalEventClosesStream(t *testing.T) {
	p := NewPublisher(4)
	sub := p.Subscribe("j1")

	p.Publish(Event{JobID: "j1", Status: job.StatusCompleted, Progress: 100})

	ev, ok := <-sub.Events
	if !ok || ev.Status != job.StatusCompleted {
		t.Fatalf("terminal event = %+v ok=%v", ev, ok)
	}
	if _, ok := <-sub.Events; ok {
		t.Fatal("channel should be closed after terminal event")
	}
	if n := p.SubscriberCount("j1"); n != 0 {
		t.Fatalf("subscriber count = %d after terminal", n)
	}
}

// TestTerminalDeliveredToFullSubscriber verifies a slow subscriber still
// receives the terminal event exactly once.
func TestTerminalDeliveredToFullSubscriber(t *testing.T) {
	p := NewPublisher(1)
	sub := p.Subscribe("j1")

	p.Publish(Event{JobID: "j1", Status: job.StatusProcessing, Progress: 10})
	p.Publish(Event{JobID: "j1", Status: job.StatusProcessing, Progress: 40}) // dropped, buffer full
	p.Publish(Event{JobID: "j1", Status: job.StatusFailed, Progress: 40})

	var terminals int
	for ev := range sub.Events {
		if ev.Terminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Fatalf("terminal events = %d, want exactly 1", terminals)
	}
}

// TestNoSubscribersDrops verifies publishing without subscribers neither
// blocks nor buffers.
func TestNoSubscribersDrops(t *testing.T) {
	p := NewPublisher(4)
	p.Publish(Event{JobID: "j1", Status: job.StatusProcessing, Progress: 10})

	sub := p.Subscribe("j1")
	select {
	case ev := <-sub.Events:
		t.Fatalf("late subscriber got buffered event %+v", ev)
	default:
	}
	if sub.JoinedSeq != 1 {
		t.Fatalf("JoinedSeq = %d, want 1", sub.JoinedSeq)
	}
}

// TestUnsubscribeRemovesEntry verifies Close cleans the registry.
func TestUnsubscribeRemovesEntry(t *testing.T) {
	p := NewPublisher(4)
	sub := p.Subscribe("j1")
	sub.Close()

	if n := p.SubscriberCount("j1"); n != 0 {
		t.Fatalf("subscriber count = %d after Close", n)
	}
}
