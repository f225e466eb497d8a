package domain

import "fmt"

// ResultCodeSuccess is the gateway result code for a captured payment.
const ResultCodeSuccess = 0

// Effects lists the side effects a transition asks the caller to run.
type Effects struct {
	Enroll        bool
	CountStudents bool
	ClearCart     bool
}

func (e Effects) Any() bool {
	return e.Enroll || e.CountStudents || e.ClearCart
}

type Transition struct {
	From    OrderStatus
	To      OrderStatus
	Effects Effects
}

var paidEffects = Effects{Enroll: true, CountStudents: true, ClearCart: true}

// Decide maps a gateway result code onto the order state machine.
// Only pending orders move; anything else is already settled.
func Decide(current OrderStatus, resultCode int) (Transition, error) {
	if current.Terminal() {
		return Transition{}, ErrAlreadySettled
	}
	if resultCode == ResultCodeSuccess {
		return Transition{From: current, To: OrderStatusPaid, Effects: paidEffects}, nil
	}
	return Transition{From: current, To: OrderStatusFailed}, nil
}

// DecideForced is the administrative variant of Decide.
// pending may go to paid or failed; paid may go to refunded.
func DecideForced(current, target OrderStatus) (Transition, error) {
	switch target {
	case OrderStatusPaid, OrderStatusFailed:
		if current.Terminal() {
			return Transition{}, ErrAlreadySettled
		}
		t := Transition{From: current, To: target}
		if target == OrderStatusPaid {
			t.Effects = paidEffects
		}
		return t, nil
	case OrderStatusRefunded:
		if current == OrderStatusRefunded {
			return Transition{}, ErrAlreadySettled
		}
		if current != OrderStatusPaid {
			return Transition{}, fmt.Errorf("%w: only paid orders can be refunded, order is %s", ErrValidation, current)
		}
		return Transition{From: current, To: target}, nil
	}
	return Transition{}, fmt.Errorf("%w: unsupported target status %q", ErrValidation, target)
}
