package worldgrid

import (
	"fmt"

	"github.com/kaessert/secretworld-sub000/internal/geom"
)

// ConflictError reports an insertion targeting a coordinate that already holds
// a different location. The caller picks another coordinate or abandons the
// placement; the grid never overwrites.
type ConflictError struct {
	Coord    geom.Coord
	Existing string
	Proposed string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("coordinate %s already holds %q, cannot place %q",
		e.Coord, e.Existing, e.Proposed)
}

// AsymmetricLinkError reports a declared connection that would overwrite an
// existing, different link on the neighbor it points at.
type AsymmetricLinkError struct {
	Neighbor  geom.Coord
	Direction geom.Direction
	Existing  geom.Coord
	Proposed  geom.Coord
}

func (e *AsymmetricLinkError) Error() string {
	return fmt.Sprintf("neighbor %s already links %s to %s, cannot relink to %s",
		e.Neighbor, e.Direction, e.Existing, e.Proposed)
}
