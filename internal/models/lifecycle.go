package models

import "fmt"

// Lifecycle is the explicit per-visit authentication lifecycle. Components
// never flip ad hoc booleans to move the flow along: all progress goes
// through Transition, which rejects moves that cannot actually happen.
type Lifecycle int

const (
	// StateAnonymous - нет подтвержденной идентичности
	StateAnonymous Lifecycle = iota
	// StatePendingCaptivePortal - токен валиден, идет обмен со шлюзом
	StatePendingCaptivePortal
	// StateAuthorized - шлюз принял логин, доступ в сеть открыт
	StateAuthorized
	// StatePendingVerification - требуется SMS подтверждение
	StatePendingVerification
	// StatePendingPayment - требуется подтверждение платежом
	StatePendingPayment
	// StateLoggedOut - terminal state до следующего запуска
	StateLoggedOut
)

func (s Lifecycle) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StatePendingCaptivePortal:
		return "pending_captive_portal"
	case StateAuthorized:
		return "authorized"
	case StatePendingVerification:
		return "pending_verification"
	case StatePendingPayment:
		return "pending_payment"
	case StateLoggedOut:
		return "logged_out"
	default:
		return fmt.Sprintf("lifecycle(%d)", int(s))
	}
}

// transitions lists every reachable lifecycle move.
var transitions = map[Lifecycle][]Lifecycle{
	StateAnonymous: {
		StatePendingCaptivePortal,
		StatePendingVerification,
		StatePendingPayment,
		StateLoggedOut,
	},
	StatePendingCaptivePortal: {
		StateAuthorized,
		StateLoggedOut,
	},
	StateAuthorized: {
		StatePendingVerification,
		StatePendingPayment,
		StateLoggedOut,
	},
	StatePendingVerification: {
		StateAuthorized,
		StateLoggedOut,
	},
	StatePendingPayment: {
		StateAuthorized,
		// repeat captive-portal login after a payment that needed
		// network access to complete
		StatePendingCaptivePortal,
		StateLoggedOut,
	},
	StateLoggedOut: {
		StateAnonymous,
	},
}

// Transition validates a lifecycle move and returns the new state.
func Transition(from, to Lifecycle) (Lifecycle, error) {
	if from == to {
		return to, nil
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return to, nil
		}
	}
	return from, fmt.Errorf("invalid lifecycle transition %s -> %s", from, to)
}
