// Package progress fans job status events out to live subscribers. Events
// are transient projections of job transitions; the durable record lives in
// the job store, and a late subscriber reconstructs state from there.
package progress

import (
	"sync"

	"github.com/joefoxing/lyriq/internal/core/job"
)

// Event is one observed job transition.
type Event struct {
	JobID    string     `json:"-"`
	Status   job.Status `json:"status"`
	Stage    job.Stage  `json:"stage,omitempty"`
	Progress int        `json:"progress"`
	Message  string     `json:"message,omitempty"`
	Seq      uint64     `json:"seq"`
}

// Terminal reports whether the event closes the stream.
func (e Event) Terminal() bool { return e.Status.Terminal() }

// Subscription is one subscriber's view of a job's event stream. Events is
// closed after a terminal event has been delivered. JoinedSeq is the last
// sequence number published for the job before this subscriber attached;
// the caller reconstructs anything earlier from the job store.
type Subscription struct {
	Events    <-chan Event
	JoinedSeq uint64

	pub   *Publisher
	jobID string
	ch    chan Event
}

// Close detaches the subscription. Safe to call after the channel closed.
func (s *Subscription) Close() {
	s.pub.unsubscribe(s.jobID, s.ch)
}

// Publisher is an in-memory per-job fan-out. All registry mutation happens
// behind one mutex; publish never blocks on a slow subscriber.
type Publisher struct {
	mu      sync.Mutex
	subs    map[string][]*Subscription
	lastSeq map[string]uint64
	buffer  int
}

// NewPublisher creates a publisher whose subscriber channels buffer up to
// buffer events.
func NewPublisher(buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 16
	}
	return &Publisher{
		subs:    make(map[string][]*Subscription),
		lastSeq: make(map[string]uint64),
		buffer:  buffer,
	}
}

// Subscribe attaches a new subscriber to a job's live events.
func (p *Publisher) Subscribe(jobID string) *Subscription {
	ch := make(chan Event, p.buffer)
	sub := &Subscription{
		Events: ch,
		pub:    p,
		jobID:  jobID,
		ch:     ch,
	}

	p.mu.Lock()
	sub.JoinedSeq = p.lastSeq[jobID]
	p.subs[jobID] = append(p.subs[jobID], sub)
	p.mu.Unlock()

	return sub
}

// Publish assigns the event its per-job sequence number and delivers it to
// all current subscribers of the job; with no subscribers it is dropped. A
// terminal event closes and removes every subscription for the job.
func (p *Publisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastSeq[ev.JobID]++
	ev.Seq = p.lastSeq[ev.JobID]

	subs := p.subs[ev.JobID]
	terminal := ev.Terminal()
	if terminal {
		delete(p.subs, ev.JobID)
		delete(p.lastSeq, ev.JobID)
	}

	for _, sub := range subs {
		if terminal {
			// Terminal events must arrive exactly once; block-free send
			// first, then drain one stale event to make room if needed.
			select {
			case sub.ch <- ev:
			default:
				select {
				case <-sub.ch:
				default:
				}
				select {
				case sub.ch <- ev:
				default:
				}
			}
			close(sub.ch)
			continue
		}
		// Non-terminal events are droppable: the durable record has the
		// latest progress and the subscriber will catch up.
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

func (p *Publisher) unsubscribe(jobID string, ch chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs := p.subs[jobID]
	for i, s := range subs {
		if s.ch == ch {
			p.subs[jobID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(p.subs[jobID]) == 0 {
		delete(p.subs, jobID)
	}
}

// SubscriberCount reports the current number of subscribers for a job.
func (p *Publisher) SubscriberCount(jobID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs[jobID])
}
