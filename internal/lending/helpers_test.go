package lending

import (
	"errors"
	"time"
)

// manualClock hands out a fixed instant that tests can advance.
type manualClock struct {
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// recordingTransfer captures outgoing transfers. It can be scripted to fail
// every call (fail) or only calls of one kind (failOn).
type recordingTransfer struct {
	calls  []transferCall
	fail   bool
	failOn string
}

type transferCall struct {
	to     string
	amount uint64
	kind   string
}

func (t *recordingTransfer) Transfer(to string, amount uint64, kind string) error {
	if t.fail || (t.failOn != "" && t.failOn == kind) {
		return errors.New("channel down")
	}
	t.calls = append(t.calls, transferCall{to: to, amount: amount, kind: kind})
	return nil
}

// recordingNotifier collects emitted events in order.
type recordingNotifier struct {
	events []Event
}

func (n *recordingNotifier) Notify(ev Event) { n.events = append(n.events, ev) }

func (n *recordingNotifier) kinds() []string {
	out := make([]string, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Kind
	}
	return out
}

type testRig struct {
	engine   *Engine
	clock    *manualClock
	transfer *recordingTransfer
	notifier *recordingNotifier
}

func newTestRig() *testRig {
	rig := &testRig{
		clock:    newManualClock(),
		transfer: &recordingTransfer{},
		notifier: &recordingNotifier{},
	}
	rig.engine = NewEngine(rig.transfer, rig.clock, rig.notifier)
	return rig
}

func attached(v uint64) *uint64 { return &v }
