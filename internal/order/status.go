package order

import (
	"slices"
	"time"
)

var orderTransitions = map[Status][]Status{
	StatusAwaitingPayment: {StatusPending, StatusCancel, StatusError},
	StatusPending:         {StatusProcessing, StatusCancel, StatusError},
	StatusProcessing:      {StatusShipped, StatusError},
	StatusShipped:         {StatusSuccess, StatusError},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentPaid, PaymentFailed},
	PaymentProcessing: {PaymentPaid, PaymentFailed},
	PaymentPaid:       {PaymentRefunded},
}

func CanTransition(from, to Status) bool {
	return slices.Contains(orderTransitions[from], to)
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return slices.Contains(paymentTransitions[from], to)
}

// ApplyOrderStatus moves o to target. It reports false for a same-value
// update and leaves o untouched on ErrInvalidTransition.
func ApplyOrderStatus(o *Order, target Status) (bool, error) {
	if o.OrderStatus == target {
		return false, nil
	}
	if !CanTransition(o.OrderStatus, target) {
		return false, ErrInvalidTransition
	}
	o.OrderStatus = target
	return true, nil
}

// ApplyPaymentStatus moves o's payment to target. The first move to Paid
// stamps PaidAt and releases an order that was awaiting payment.
func ApplyPaymentStatus(o *Order, target PaymentStatus, now time.Time) (bool, error) {
	if o.PaymentStatus == target {
		return false, nil
	}
	if !CanTransitionPayment(o.PaymentStatus, target) {
		return false, ErrInvalidTransition
	}
	o.PaymentStatus = target
	if target == PaymentPaid && o.PaidAt == nil {
		paid := now.UTC()
		o.PaidAt = &paid
		if o.OrderStatus == StatusAwaitingPayment {
			o.OrderStatus = StatusPending
		}
	}
	return true, nil
}
