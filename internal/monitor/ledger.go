package monitor

// RegisterResult reports whether a violation registration was new or a
// duplicate of an active entry.
type RegisterResult int

const (
	// RegisterNew means the rule had no active violation; caller alerts
	RegisterNew RegisterResult = iota
	// RegisterDuplicate means the rule is already active; no alert
	RegisterDuplicate
)

// Violation is an active, deduplicated record that a rule was broken.
// It stays active while firstSeenIndex is inside the context window.
type Violation struct {
	RuleID         string
	FirstSeenIndex int64
	LastSeenIndex  int64
	Suggestion     string
}

// ViolationLedger tracks the currently active violations for one project.
// Pure state container: no I/O, no clocks. Owned and mutated only by the
// supervisor's goroutine.
type ViolationLedger struct {
	active map[string]*Violation
	order  []string
}

// NewViolationLedger creates an empty ledger.
func NewViolationLedger() *ViolationLedger {
	return &ViolationLedger{
		active: make(map[string]*Violation),
	}
}

// Register marks a rule violated at messageIndex. Returns RegisterDuplicate
// as a no-op when the rule is already active (dedup law); otherwise records
// the violation with firstSeen = lastSeen = messageIndex and returns
// RegisterNew.
func (l *ViolationLedger) Register(ruleID string, messageIndex int64, suggestion string) RegisterResult {
	if _, ok := l.active[ruleID]; ok {
		return RegisterDuplicate
	}
	l.active[ruleID] = &Violation{
		RuleID:         ruleID,
		FirstSeenIndex: messageIndex,
		LastSeenIndex:  messageIndex,
		Suggestion:     suggestion,
	}
	l.order = append(l.order, ruleID)
	return RegisterNew
}

// Touch updates lastSeenIndex for an active violation without re-alerting,
// keeping recency accurate. No-op for inactive rules.
func (l *ViolationLedger) Touch(ruleID string, messageIndex int64) {
	if v, ok := l.active[ruleID]; ok && messageIndex > v.LastSeenIndex {
		v.LastSeenIndex = messageIndex
	}
}

// Expire purges violations whose firstSeenIndex fell out of the context
// window (firstSeenIndex < currentIndex - k) and returns the purged rule
// IDs in registration order. Purged rules may legitimately re-register as
// new afterward.
func (l *ViolationLedger) Expire(currentIndex int64, k int) []string {
	var purged []string
	kept := l.order[:0]
	for _, ruleID := range l.order {
		v := l.active[ruleID]
		if v.FirstSeenIndex < currentIndex-int64(k) {
			delete(l.active, ruleID)
			purged = append(purged, ruleID)
			continue
		}
		kept = append(kept, ruleID)
	}
	l.order = kept
	return purged
}

// Active returns the active violations in registration order. Used to build
// the already-reported section of analysis requests.
func (l *ViolationLedger) Active() []Violation {
	out := make([]Violation, 0, len(l.order))
	for _, ruleID := range l.order {
		out = append(out, *l.active[ruleID])
	}
	return out
}

// Len returns the number of active violations.
func (l *ViolationLedger) Len() int {
	return len(l.active)
}
