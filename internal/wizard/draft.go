package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

var (
	ErrInvalidCapacity = errors.New("invalid capacity")
	ErrInvalidLocation = errors.New("invalid location")
	ErrDayOrder        = errors.New("last day must not be before first day")
	ErrSlotOrder       = errors.New("slot end must be after slot start")
	ErrInvalidDay      = errors.New("day must be formatted as YYYY-MM-DD")
)

// DateKey identifies one day of the plan, formatted as YYYY-MM-DD.
type DateKey string

const dateLayout = "2006-01-02"

func (k DateKey) Time() (time.Time, error) {
	t, err := time.Parse(dateLayout, string(k))
	if err != nil {
		return time.Time{}, ErrInvalidDay
	}
	return t, nil
}

// SlotKey names one interval within a day. Keys are unique per day by map
// construction.
type SlotKey string

type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type CapacityType string

const (
	CapacityNone        CapacityType = "none"
	CapacityCustom      CapacityType = "custom"
	CapacityRecommended CapacityType = "recommended"
)

// RecommendedCapacities is the closed set of presets offered by the product.
var RecommendedCapacities = []int{50, 100, 200, 300}

// Capacity is a closed sum: none, a custom non-negative value, or one of the
// recommended presets. Value is meaningless when Type is none.
type Capacity struct {
	Type  CapacityType
	Value int
}

func (c Capacity) Validate() error {
	switch c.Type {
	case CapacityNone:
		return nil
	case CapacityCustom:
		if c.Value < 0 {
			return ErrInvalidCapacity
		}
		return nil
	case CapacityRecommended:
		for _, v := range RecommendedCapacities {
			if c.Value == v {
				return nil
			}
		}
		return ErrInvalidCapacity
	default:
		return ErrInvalidCapacity
	}
}

type capacityJSON struct {
	Type  CapacityType `json:"type"`
	Value *int         `json:"value,omitempty"`
}

func (c Capacity) MarshalJSON() ([]byte, error) {
	out := capacityJSON{Type: c.Type}
	if c.Type != CapacityNone {
		v := c.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

func (c *Capacity) UnmarshalJSON(data []byte) error {
	var in capacityJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	parsed := Capacity{Type: in.Type}
	if in.Value != nil {
		parsed.Value = *in.Value
	}
	if err := parsed.Validate(); err != nil {
		return err
	}
	*c = parsed
	return nil
}

type LocationKind string

const (
	LocationVenue    LocationKind = "venue"
	LocationFestival LocationKind = "festival"
	LocationOnline   LocationKind = "online"
	LocationOther    LocationKind = "other"
)

// Location is a closed sum over kinds. Only the field matching the kind is
// populated; switching kinds resets the others.
type Location struct {
	Kind    LocationKind `json:"kind"`
	Address string       `json:"address,omitempty"`
	URL     string       `json:"url,omitempty"`
	Details string       `json:"details,omitempty"`
}

func VenueLocation(address string) Location { return Location{Kind: LocationVenue, Address: address} }
func FestivalLocation(address string) Location {
	return Location{Kind: LocationFestival, Address: address}
}
func OnlineLocation(url string) Location    { return Location{Kind: LocationOnline, URL: url} }
func OtherLocation(details string) Location { return Location{Kind: LocationOther, Details: details} }

// WithKind switches the location variant. Kind-specific fields never carry
// over between variants.
func (l Location) WithKind(kind LocationKind) Location {
	if l.Kind == kind {
		return l
	}
	return Location{Kind: kind}
}

func (l Location) Validate() error {
	switch l.Kind {
	case LocationVenue, LocationFestival:
		if l.URL != "" || l.Details != "" {
			return ErrInvalidLocation
		}
	case LocationOnline:
		if l.Address != "" || l.Details != "" {
			return ErrInvalidLocation
		}
	case LocationOther:
		if l.Address != "" || l.URL != "" {
			return ErrInvalidLocation
		}
	default:
		return ErrInvalidLocation
	}
	return nil
}

// Ticket is one line item of the draft. TicketType is an organization-scoped
// category name; categories whose name begins with "paid" form the paid pool.
type Ticket struct {
	Name       string `json:"name"`
	Shape      string `json:"shape"`
	Price      int64  `json:"price"`
	Currency   string `json:"currency"`
	Quantity   int    `json:"quantity"`
	TicketType string `json:"ticket_type"`
}

// IsPaidType reports whether the ticket reconciles against the paid pool.
func (t Ticket) IsPaidType() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(t.TicketType)), "paid")
}

// Draft is the single source of truth for an in-progress wizard. Drafts are
// value types: every mutation goes through a whole-draft-replacing update so
// history snapshots stay correct. Never mutate the nested maps in place.
type Draft struct {
	PlanTypeID     string                           `json:"plan_type_id"`
	Name           string                           `json:"name"`
	Description    string                           `json:"description"`
	Days           [2]DateKey                       `json:"days"`
	TimeSlots      map[DateKey]map[SlotKey]Interval `json:"time_slots"`
	Capacity       Capacity                         `json:"capacity"`
	Location       Location                         `json:"location"`
	Tickets        []Ticket                         `json:"tickets"`
	ReferencedFrom string                           `json:"referenced_from,omitempty"`
}

// DefaultDraft is the baseline a wizard mounts with for a plan type. It must
// stay deterministic: IsFormEmpty compares against it by deep equality.
func DefaultDraft(planTypeID string) Draft {
	return Draft{
		PlanTypeID: planTypeID,
		Capacity:   Capacity{Type: CapacityNone},
		Location:   Location{Kind: LocationVenue},
	}
}

// Validate checks structural invariants: day ordering and slot ordering.
// Completeness is a separate, weaker-than-valid question answered by
// IsComplete.
func (d Draft) Validate() error {
	if err := d.Capacity.Validate(); err != nil {
		return err
	}
	if err := d.Location.Validate(); err != nil {
		return err
	}
	if d.Days[0] != "" || d.Days[1] != "" {
		first, err := d.Days[0].Time()
		if err != nil {
			return err
		}
		last, err := d.Days[1].Time()
		if err != nil {
			return err
		}
		if last.Before(first) {
			return ErrDayOrder
		}
	}
	for day, slots := range d.TimeSlots {
		if _, err := day.Time(); err != nil {
			return err
		}
		for key, iv := range slots {
			if !iv.End.After(iv.Start) {
				return fmt.Errorf("%w: %s/%s", ErrSlotOrder, day, key)
			}
		}
	}
	return nil
}

// IsComplete gates submission, not navigation: a resolved plan type, a name,
// and (when a capacity is declared) ticket quantities summing to exactly the
// capacity value.
func (d Draft) IsComplete() bool {
	if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.PlanTypeID) == "" {
		return false
	}
	if d.Capacity.Type == CapacityNone {
		return true
	}
	return TotalQuantity(d.Tickets) == d.Capacity.Value
}

// IsFormEmpty reports whether the draft still equals its type's default,
// used to gate the reset and undo affordances.
func (d Draft) IsFormEmpty() bool {
	return reflect.DeepEqual(d, DefaultDraft(d.PlanTypeID))
}

// WithSlot returns a copy with the interval set, sharing no map state with
// the receiver.
func (d Draft) WithSlot(day DateKey, key SlotKey, iv Interval) Draft {
	out := d
	out.TimeSlots = cloneSlots(d.TimeSlots)
	if out.TimeSlots == nil {
		out.TimeSlots = map[DateKey]map[SlotKey]Interval{}
	}
	if out.TimeSlots[day] == nil {
		out.TimeSlots[day] = map[SlotKey]Interval{}
	}
	out.TimeSlots[day][key] = iv
	return out
}

// WithoutSlot returns a copy with the interval removed; removing the last
// slot of a day drops the day entry.
func (d Draft) WithoutSlot(day DateKey, key SlotKey) Draft {
	if d.TimeSlots == nil {
		return d
	}
	if _, ok := d.TimeSlots[day][key]; !ok {
		return d
	}
	out := d
	out.TimeSlots = cloneSlots(d.TimeSlots)
	delete(out.TimeSlots[day], key)
	if len(out.TimeSlots[day]) == 0 {
		delete(out.TimeSlots, day)
	}
	return out
}

// WithTickets returns a copy holding its own ticket slice.
func (d Draft) WithTickets(tickets []Ticket) Draft {
	out := d
	out.Tickets = make([]Ticket, len(tickets))
	copy(out.Tickets, tickets)
	return out
}

func cloneSlots(src map[DateKey]map[SlotKey]Interval) map[DateKey]map[SlotKey]Interval {
	if src == nil {
		return nil
	}
	dst := make(map[DateKey]map[SlotKey]Interval, len(src))
	for day, slots := range src {
		copied := make(map[SlotKey]Interval, len(slots))
		for key, iv := range slots {
			copied[key] = iv
		}
		dst[day] = copied
	}
	return dst
}
