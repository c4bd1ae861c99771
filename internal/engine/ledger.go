package engine

// Ledger tracks the crew's shared PU budget for a single round. It is
// debit-only: there is no credit or refund path, and unspent PU does not
// carry over between rounds. All access happens on the crew goroutine, so
// Reserve's check-then-debit is atomic by construction.
type Ledger struct {
	budget    int
	remaining int
}

func NewLedger(pu int) *Ledger {
	return &Ledger{budget: pu, remaining: pu}
}

func (l *Ledger) Remaining() int { return l.remaining }
func (l *Ledger) Budget() int    { return l.budget }

// Reserve debits cost if the remaining budget covers it. Once debited, PU is
// spent regardless of the action's outcome.
func (l *Ledger) Reserve(cost int) bool {
	if cost < 0 || cost > l.remaining {
		return false
	}
	l.remaining -= cost
	return true
}
