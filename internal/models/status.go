package models

// The delivery lifecycle only ever moves forward. Earlier this was a set of
// string comparisons scattered over the views; now there is a single table and
// everyone (service layer and repository) asks it.
var deliveryTransitions = map[string][]string{
	DeliveryStatusPending:   {DeliveryStatusAccepted, DeliveryStatusCancelled, DeliveryStatusRejected},
	DeliveryStatusAccepted:  {DeliveryStatusPickedUp, DeliveryStatusCancelled},
	DeliveryStatusPickedUp:  {DeliveryStatusInTransit, DeliveryStatusDelivered},
	DeliveryStatusInTransit: {DeliveryStatusNearby, DeliveryStatusDelivered},
	DeliveryStatusNearby:    {DeliveryStatusDelivered},
}

func CanTransition(from, to string) bool {
	if from == to {
		return false
	}
	for _, s := range deliveryTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminalDeliveryStatus(s string) bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusCancelled, DeliveryStatusRejected:
		return true
	}
	return false
}

func IsValidDeliveryStatus(s string) bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusAccepted, DeliveryStatusPickedUp,
		DeliveryStatusInTransit, DeliveryStatusNearby, DeliveryStatusDelivered,
		DeliveryStatusCancelled, DeliveryStatusRejected:
		return true
	}
	return false
}

func IsValidSampleStatus(s string) bool {
	switch s {
	case SampleStatusPickedUp, SampleStatusEnRoute, SampleStatusNearby,
		SampleStatusDelivered, SampleStatusArrived, SampleStatusDelayed,
		SampleStatusIssue:
		return true
	}
	return false
}

// IsAnnotationSampleStatus reports sample statuses that never move the parent
// delivery forward (delayed / issue_reported are notes on top of the primary
// progression).
func IsAnnotationSampleStatus(s string) bool {
	return s == SampleStatusDelayed || s == SampleStatusIssue
}

// DeliveryStatusForSample maps a sample status to the delivery status it
// implies, or "" for annotations.
func DeliveryStatusForSample(s string) string {
	switch s {
	case SampleStatusPickedUp:
		return DeliveryStatusPickedUp
	case SampleStatusEnRoute:
		return DeliveryStatusInTransit
	case SampleStatusNearby, SampleStatusArrived:
		return DeliveryStatusNearby
	case SampleStatusDelivered:
		return DeliveryStatusDelivered
	}
	return ""
}

func IsValidRole(s string) bool {
	switch s {
	case RoleSupplier, RoleProvider, RoleBuilder:
		return true
	}
	return false
}

func IsValidMessageKind(s string) bool {
	switch s {
	case MessageKindText, MessageKindStatus, MessageKindLocation:
		return true
	}
	return false
}
