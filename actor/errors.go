package actor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/spirit-labs/streamjoin/logger"
)

// ErrorReport is a non-fatal error raised while an actor processes data.
type ErrorReport struct {
	ActorID  uint32
	Identity string
	Err      error
	Time     time.Time
}

func (e ErrorReport) String() string {
	return fmt.Sprintf("actor %d (%s): %v", e.ActorID, e.Identity, e.Err)
}

// ErrorReporter receives non-fatal errors. Report must never block the caller.
type ErrorReporter interface {
	Report(actorID uint32, identity string, err error)
}

// NewIdentity returns a unique identity for one executor instance, e.g. HashJoinExecutor-<uuid>.
func NewIdentity(component string) string {
	return fmt.Sprintf("%s-%s", component, uuid.New().String())
}

// ErrorQueue is an unbounded best-effort ErrorReporter. Reports are buffered until taken; reporting never blocks.
type ErrorQueue struct {
	lock    sync.Mutex
	reports []ErrorReport
	notify  chan struct{}
	closed  bool
}

func NewErrorQueue() *ErrorQueue {
	return &ErrorQueue{notify: make(chan struct{}, 1)}
}

func (q *ErrorQueue) Report(actorID uint32, identity string, err error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed {
		return
	}
	q.reports = append(q.reports, ErrorReport{ActorID: actorID, Identity: identity, Err: err, Time: time.Now()})
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Take blocks until a report is available, the queue is closed, or ctx is done.
func (q *ErrorQueue) Take(ctx context.Context) (ErrorReport, bool, error) {
	for {
		q.lock.Lock()
		if len(q.reports) > 0 {
			report := q.reports[0]
			q.reports = q.reports[1:]
			q.lock.Unlock()
			return report, true, nil
		}
		closed := q.closed
		q.lock.Unlock()
		if closed {
			return ErrorReport{}, false, nil
		}
		select {
		case <-ctx.Done():
			return ErrorReport{}, false, ctx.Err()
		case <-q.notify:
		}
	}
}

// Drain removes and returns everything reported so far.
func (q *ErrorQueue) Drain() []ErrorReport {
	q.lock.Lock()
	defer q.lock.Unlock()
	reports := q.reports
	q.reports = nil
	return reports
}

func (q *ErrorQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.reports)
}

// Close wakes any waiting Take. Reports after Close are dropped.
func (q *ErrorQueue) Close() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.closed = true
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// LoggingReporter logs each report as a warning and passes it on to next, if set.
type LoggingReporter struct {
	next ErrorReporter
}

func NewLoggingReporter(next ErrorReporter) *LoggingReporter {
	return &LoggingReporter{next: next}
}

func (l *LoggingReporter) Report(actorID uint32, identity string, err error) {
	log.Warnf("actor %d (%s) reported error: %v", actorID, identity, err)
	if l.next != nil {
		l.next.Report(actorID, identity, err)
	}
}
