package worldgrid

import (
	"fmt"

	"github.com/pixil98/go-errors"

	"github.com/kaessert/secretworld-sub000/internal/geom"
)

// Location is a discrete named place on the world grid. Content (description,
// shops, quests) belongs to external collaborators; the grid only indexes
// identity, position and connectivity. Locations are append-only: once placed,
// only the grid's insertion operation may touch connections.
type Location struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`

	Coord       geom.Coord                   `json:"coord"`
	Connections map[geom.Direction]geom.Coord `json:"connections,omitempty"`

	// Flags carries collaborator-owned markers such as "named" or "safe_zone".
	Flags []string `json:"flags,omitempty"`
}

// Validate checks the location's own shape. Connection targets are declared
// by the generator and usually adjacent, but the grid only insists they point
// somewhere else; symmetry against placed neighbors is checked at insertion.
func (l *Location) Validate() error {
	el := errors.NewErrorList()

	if l.Name == "" {
		el.Add(fmt.Errorf("location name is required"))
	}
	for d, target := range l.Connections {
		if target == l.Coord {
			el.Add(fmt.Errorf("connection %s targets the location itself", d))
		}
	}

	return el.Err()
}

// HasFlag reports whether the collaborator marked the location with flag.
func (l *Location) HasFlag(flag string) bool {
	for _, f := range l.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
