package fleet

import (
	"fmt"
	"strconv"
	"strings"
)

// String writes the hall call as floor then direction, e.g. "4U".
func (s ExternalStop) String() string {
	return strconv.Itoa(s.Floor) + string(s.Direction)
}

// Describe renders f on one line, e.g.
//
//	floors=5 calls=[4U] e0(3 U closed up=[4] down=[1])
func Describe(f Fleet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "floors=%d calls=[", f.TotalFloors)
	for i, s := range f.ExternalStops {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.String())
	}
	b.WriteByte(']')
	for _, e := range f.Elevators {
		fmt.Fprintf(&b, " e%d(%d %s %s up=%v down=%v)",
			e.ID, e.Position, e.Direction, DoorState(e.DoorOpen), e.UpStops, e.DownStops)
	}
	return b.String()
}

// DoorState returns "open" or "closed".
func DoorState(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}
