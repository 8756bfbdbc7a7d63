package wizard

import "testing"

func TestCheckCapacityClassification(t *testing.T) {
	draft := DefaultDraft("event")
	draft.Capacity = Capacity{Type: CapacityCustom, Value: 10}

	tests := []struct {
		name      string
		total     int
		wantState CapacityState
		remaining int
	}{
		{"exact", 10, CapacityStateExact, 0},
		{"exceeded", 11, CapacityStateExceeded, 0},
		{"remaining", 9, CapacityStateRemaining, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := draft.WithTickets([]Ticket{{Name: "GA", Quantity: tt.total, TicketType: "free"}})
			check := CheckCapacity(d)
			if check.State != tt.wantState {
				t.Fatalf("state = %v, want %v", check.State, tt.wantState)
			}
			if check.Remaining != tt.remaining {
				t.Fatalf("remaining = %d, want %d", check.Remaining, tt.remaining)
			}
		})
	}
}

func TestCheckCapacityUnset(t *testing.T) {
	d := DefaultDraft("event")
	if got := CheckCapacity(d); got.State != CapacityStateUnset {
		t.Fatalf("expected unset state, got %v", got.State)
	}
}

func TestRemainingAllowedNoCapacity(t *testing.T) {
	edited := Ticket{Name: "GA", TicketType: "free"}
	if got := RemainingAllowed(edited, nil, Capacity{Type: CapacityNone}); got != 0 {
		t.Fatalf("no capacity should permit zero tickets, got %d", got)
	}
}

func TestRemainingAllowedFreePoolCountsEveryone(t *testing.T) {
	capacity := Capacity{Type: CapacityRecommended, Value: 100}
	others := []Ticket{
		{Name: "VIP", Quantity: 30, TicketType: "paid-vip"},
		{Name: "Crew", Quantity: 20, TicketType: "free"},
	}
	edited := Ticket{Name: "GA", TicketType: "free"}
	if got := RemainingAllowed(edited, others, capacity); got != 50 {
		t.Fatalf("free remaining = %d, want 50", got)
	}
}

func TestRemainingAllowedPaidPoolIgnoresFree(t *testing.T) {
	capacity := Capacity{Type: CapacityRecommended, Value: 100}
	others := []Ticket{
		{Name: "VIP", Quantity: 30, TicketType: "paid-vip"},
		{Name: "Crew", Quantity: 20, TicketType: "free"},
	}
	edited := Ticket{Name: "Early Bird", TicketType: "paid"}
	if got := RemainingAllowed(edited, others, capacity); got != 70 {
		t.Fatalf("paid remaining = %d, want 70", got)
	}
}

func TestRemainingAllowedNeverNegative(t *testing.T) {
	capacity := Capacity{Type: CapacityCustom, Value: 10}
	others := []Ticket{{Name: "GA", Quantity: 25, TicketType: "free"}}
	edited := Ticket{Name: "Extra", TicketType: "free"}
	if got := RemainingAllowed(edited, others, capacity); got != 0 {
		t.Fatalf("overshooting pool should floor at zero, got %d", got)
	}
}

func TestOthersExcluding(t *testing.T) {
	tickets := []Ticket{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	others := OthersExcluding(tickets, 1)
	if len(others) != 2 || others[0].Name != "a" || others[1].Name != "c" {
		t.Fatalf("unexpected others: %+v", others)
	}
	if got := OthersExcluding(tickets, -1); len(got) != 3 {
		t.Fatalf("new-ticket edit should keep all others, got %+v", got)
	}
}
