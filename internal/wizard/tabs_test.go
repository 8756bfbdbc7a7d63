package wizard

import "testing"

func TestTabLinearChain(t *testing.T) {
	order := []Tab{TabGeneral, TabTime, TabLocation, TabTickets}
	current := TabGeneral
	for _, want := range order[1:] {
		current = current.Move(Forward)
		if current != want {
			t.Fatalf("forward walk reached %q, want %q", current, want)
		}
	}
	for i := len(order) - 2; i >= 0; i-- {
		current = current.Move(Backward)
		if current != order[i] {
			t.Fatalf("backward walk reached %q, want %q", current, order[i])
		}
	}
}

func TestTabBoundaryIdempotence(t *testing.T) {
	current := TabGeneral
	for i := 0; i < 5; i++ {
		if current = current.Move(Backward); current != TabGeneral {
			t.Fatalf("backward from general moved to %q", current)
		}
	}
	current = TabTickets
	for i := 0; i < 5; i++ {
		if current = current.Move(Forward); current != TabTickets {
			t.Fatalf("forward from tickets moved to %q", current)
		}
	}
}

func TestParseTab(t *testing.T) {
	if tab, err := ParseTab(" Location "); err != nil || tab != TabLocation {
		t.Fatalf("ParseTab = %q, %v", tab, err)
	}
	if _, err := ParseTab("summary"); err == nil {
		t.Fatal("expected error for unknown tab")
	}
}
