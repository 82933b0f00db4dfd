package worker

// State is a step in the life of one delivery.
type State string

const (
	StateReceived      State = "RECEIVED"
	StateValidating    State = "VALIDATING"
	StatePersisting    State = "PERSISTING"
	StateDiscarding    State = "DISCARDING"
	StateDeadLettering State = "DEAD_LETTERING"
	StateAcknowledged  State = "ACKNOWLEDGED"
	StateRequeued      State = "REQUEUED"
)

var transitions = map[State][]State{
	StateReceived:   {StateValidating},
	StateValidating: {StatePersisting, StateDiscarding},
	StatePersisting: {StateAcknowledged, StateRequeued, StateDiscarding, StateDeadLettering},
	StateDiscarding: {StateAcknowledged},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Outcome is the metric label for how a delivery left the worker.
type Outcome string

const (
	OutcomePersisted    Outcome = "persisted"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeDiscarded    Outcome = "discarded"
	OutcomeRequeued     Outcome = "requeued"
	OutcomeDeadLettered Outcome = "dead_lettered"
	// OutcomeUnsettled means shutdown interrupted the delivery; it was neither
	// acked nor nacked and the broker will redeliver it.
	OutcomeUnsettled Outcome = "unsettled"
)

// Result records the path a delivery took through the state machine.
type Result struct {
	Outcome  Outcome
	States   []State
	ReportID int64
	Reason   string
}

func (r *Result) enter(s State) {
	r.States = append(r.States, s)
}

// Valid reports whether every recorded step follows the transition table.
func (r Result) Valid() bool {
	for i := 1; i < len(r.States); i++ {
		if !canTransition(r.States[i-1], r.States[i]) {
			return false
		}
	}
	return true
}
