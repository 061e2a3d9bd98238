package featureprobe

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	eventQueueCapacity = 10000
	flushInterval      = 5 * time.Second
)

// EventProcessor accepts evaluation and custom events and ships them to the
// reporting endpoint asynchronously.
type EventProcessor interface {
	Push(event Event)
	Flush()
	Shutdown()
}

type eventActionType int

const (
	eventAction eventActionType = iota
	flushAction
)

type queuedAction struct {
	typ   eventActionType
	event Event
}

// DefaultEventProcessor batches events through a bounded queue drained by a
// single consumer goroutine. When the queue is full, actions are dropped with
// a warning: the engine sheds telemetry rather than blocking evaluation.
type DefaultEventProcessor struct {
	queue   chan queuedAction
	repo    *eventRepository
	client  *resty.Client
	url     string
	ticker  *time.Ticker
	closeMu sync.RWMutex
	closed  bool
	done    chan struct{}
	senders sync.WaitGroup
	log     *slog.Logger
}

func newEventProcessor(client *resty.Client, eventsURL string, interval time.Duration, log *slog.Logger) *DefaultEventProcessor {
	p := &DefaultEventProcessor{
		queue:  make(chan queuedAction, eventQueueCapacity),
		repo:   newEventRepository(),
		client: client,
		url:    eventsURL,
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
		log:    log.With(slog.String("worker", "events")),
	}
	go p.consume()
	go p.flushLoop()
	return p
}

func (p *DefaultEventProcessor) Push(event Event) {
	p.enqueue(queuedAction{typ: eventAction, event: event})
}

// Flush asks the consumer to snapshot and send the accumulated telemetry.
func (p *DefaultEventProcessor) Flush() {
	p.enqueue(queuedAction{typ: flushAction})
}

// enqueue drops the action with a warning when the queue is full or the
// processor is shut down. The read lock excludes the queue close in Shutdown.
func (p *DefaultEventProcessor) enqueue(action queuedAction) {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- action:
	default:
		p.log.Warn("event processing is busy, some events will be dropped")
	}
}

// Shutdown flushes and stops the processor in order: no new pushes, one
// final flush, timer stopped, queue drained, consumer joined, outstanding
// sends awaited. No event is silently lost and no send is abandoned.
func (p *DefaultEventProcessor) Shutdown() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	select {
	case p.queue <- queuedAction{typ: flushAction}:
	default:
		p.log.Warn("event queue full at shutdown, final flush dropped")
	}
	p.ticker.Stop()
	close(p.queue)
	p.closeMu.Unlock()

	<-p.done
	p.senders.Wait()
}

// consume drains the queue continuously: it blocks for one action, then
// opportunistically takes any further ready actions up to the queue capacity,
// amortizing wake-ups under load while staying responsive when idle.
func (p *DefaultEventProcessor) consume() {
	defer close(p.done)
	for {
		action, ok := <-p.queue
		if !ok {
			return
		}
		p.handle(action)
	batch:
		for i := 1; i < eventQueueCapacity; i++ {
			select {
			case action, ok := <-p.queue:
				if !ok {
					return
				}
				p.handle(action)
			default:
				break batch
			}
		}
	}
}

func (p *DefaultEventProcessor) handle(action queuedAction) {
	switch action.typ {
	case eventAction:
		p.repo.add(action.event)
	case flushAction:
		p.processFlush()
	}
}

// processFlush snapshots and clears the live repository and hands the
// snapshot to an async send, so sending never blocks the consumer loop.
// An empty repository produces no network call.
func (p *DefaultEventProcessor) processFlush() {
	if p.repo.empty() {
		return
	}
	snapshot := p.repo.snapshot()
	p.repo.clear()
	p.senders.Add(1)
	go p.send([]*eventRepository{snapshot})
}

func (p *DefaultEventProcessor) send(batch []*eventRepository) {
	defer p.senders.Done()
	resp, err := p.client.R().SetBody(batch).Post(p.url)
	if err != nil {
		p.log.Error("failed to send events", "error", err)
		return
	}
	if resp.IsError() {
		p.log.Error("failed to send events",
			"error", apiError{status: resp.StatusCode(), url: p.url})
	}
}

func (p *DefaultEventProcessor) flushLoop() {
	for {
		select {
		case <-p.ticker.C:
			p.Flush()
		case <-p.done:
			return
		}
	}
}
