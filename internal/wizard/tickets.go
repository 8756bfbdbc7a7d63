package wizard

// CapacityState classifies ticket totals against the declared capacity, used
// to enable or disable the add-ticket affordance and to render guidance.
type CapacityState int

const (
	// CapacityStateUnset means no capacity is declared: tickets are not
	// permitted until one is.
	CapacityStateUnset CapacityState = iota
	// CapacityStateExceeded means ticket quantities overshoot the capacity.
	CapacityStateExceeded
	// CapacityStateExact means quantities sum to exactly the capacity.
	CapacityStateExact
	// CapacityStateRemaining means capacity is left over; Remaining says how
	// much.
	CapacityStateRemaining
)

type CapacityCheck struct {
	State     CapacityState
	Remaining int
}

// TotalQuantity sums the quantities of all tickets.
func TotalQuantity(tickets []Ticket) int {
	total := 0
	for _, t := range tickets {
		total += t.Quantity
	}
	return total
}

// RemainingAllowed computes the highest quantity the edited ticket may take.
// others must hold every ticket of the draft except the one being edited.
//
// Free and paid allocations reconcile separately within the same overall
// ceiling: a free ticket counts every other ticket against the capacity,
// while a paid ticket counts only the other paid-pool tickets. With no
// capacity declared the remaining allowance is zero; callers surface that as
// an error rather than clamping.
func RemainingAllowed(edited Ticket, others []Ticket, capacity Capacity) int {
	if capacity.Type == CapacityNone {
		return 0
	}

	total := 0
	for _, t := range others {
		if edited.IsPaidType() && !t.IsPaidType() {
			continue
		}
		total += t.Quantity
	}

	remaining := capacity.Value - total
	if remaining < 0 {
		return 0
	}
	return remaining
}

// OthersExcluding returns the draft's tickets without the line at index.
// Index -1 (a new ticket) returns all tickets.
func OthersExcluding(tickets []Ticket, index int) []Ticket {
	if index < 0 || index >= len(tickets) {
		return tickets
	}
	others := make([]Ticket, 0, len(tickets)-1)
	others = append(others, tickets[:index]...)
	others = append(others, tickets[index+1:]...)
	return others
}

// CheckCapacity classifies the draft's combined ticket total against its
// capacity.
func CheckCapacity(d Draft) CapacityCheck {
	if d.Capacity.Type == CapacityNone {
		return CapacityCheck{State: CapacityStateUnset}
	}
	total := TotalQuantity(d.Tickets)
	switch {
	case total > d.Capacity.Value:
		return CapacityCheck{State: CapacityStateExceeded}
	case total == d.Capacity.Value:
		return CapacityCheck{State: CapacityStateExact}
	default:
		return CapacityCheck{State: CapacityStateRemaining, Remaining: d.Capacity.Value - total}
	}
}
