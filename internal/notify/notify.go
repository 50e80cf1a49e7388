package notify

import (
	"github.com/sirupsen/logrus"

	"github.com/poolfund/lending-service/internal/lending"
)

// EventStore journals engine events.
type EventStore interface {
	InsertEvent(ev lending.Event) error
}

// LogNotifier writes each engine event to the structured log.
type LogNotifier struct {
	log *logrus.Logger
}

// NewLogNotifier initializes a log-backed notifier
func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ev lending.Event) {
	n.log.WithFields(logrus.Fields{
		"kind":     ev.Kind,
		"pool_id":  ev.PoolID,
		"loan_id":  ev.LoanID,
		"borrower": ev.Borrower,
		"amount":   ev.Amount,
		"reason":   ev.Reason,
	}).Info("lending event")
}

// JournalNotifier persists each engine event as an audit record. Journal
// failures are logged, never surfaced: the event fires after the transaction
// has committed, so there is nothing left to roll back.
type JournalNotifier struct {
	store EventStore
	log   *logrus.Logger
}

// NewJournalNotifier initializes a database-backed notifier
func NewJournalNotifier(store EventStore, log *logrus.Logger) *JournalNotifier {
	return &JournalNotifier{store: store, log: log}
}

func (n *JournalNotifier) Notify(ev lending.Event) {
	if err := n.store.InsertEvent(ev); err != nil {
		n.log.Errorf("Failed to journal %s event: %v", ev.Kind, err)
	}
}

// Multi fans one event out to several notifiers in order.
type Multi []lending.Notifier

func (m Multi) Notify(ev lending.Event) {
	for _, n := range m {
		n.Notify(ev)
	}
}
