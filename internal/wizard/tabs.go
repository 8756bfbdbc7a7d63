package wizard

import (
	"errors"
	"strings"
)

var ErrUnknownTab = errors.New("unknown tab")

// Tab is one step of the wizard. The steps form a linear chain:
// general -> time -> location -> tickets.
type Tab string

const (
	TabGeneral  Tab = "general"
	TabTime     Tab = "time"
	TabLocation Tab = "location"
	TabTickets  Tab = "tickets"
)

type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

var forwardEdges = map[Tab]Tab{
	TabGeneral:  TabTime,
	TabTime:     TabLocation,
	TabLocation: TabTickets,
}

var backwardEdges = map[Tab]Tab{
	TabTickets:  TabLocation,
	TabLocation: TabTime,
	TabTime:     TabGeneral,
}

// Move returns the adjacent tab in the given direction. Moves past a boundary
// (backward from general, forward from tickets) return the receiver unchanged;
// validation never gates navigation.
func (t Tab) Move(d Direction) Tab {
	var next Tab
	var ok bool
	switch d {
	case Forward:
		next, ok = forwardEdges[t]
	case Backward:
		next, ok = backwardEdges[t]
	}
	if !ok {
		return t
	}
	return next
}

func ParseTab(raw string) (Tab, error) {
	switch Tab(strings.TrimSpace(strings.ToLower(raw))) {
	case TabGeneral:
		return TabGeneral, nil
	case TabTime:
		return TabTime, nil
	case TabLocation:
		return TabLocation, nil
	case TabTickets:
		return TabTickets, nil
	default:
		return "", ErrUnknownTab
	}
}

func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.TrimSpace(strings.ToLower(raw))) {
	case Forward:
		return Forward, nil
	case Backward:
		return Backward, nil
	default:
		return "", errors.New("unknown direction")
	}
}
