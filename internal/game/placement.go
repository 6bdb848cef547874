package game

// ValidatePlacement checks a proposed layout against the fixed fleet
// composition, the board bounds and ship overlap, in that order. It fails on
// the first violation and never rewrites the layout.
func ValidatePlacement(ships []Ship, boardSize int) error {
	if len(ships) != len(FleetSizes) {
		return ErrWrongFleet
	}
	seen := make(map[ShipKind]bool, len(FleetSizes))
	for _, ship := range ships {
		size, ok := FleetSizes[ship.Kind]
		if !ok || seen[ship.Kind] || len(ship.Cells) != size {
			return ErrWrongFleet
		}
		seen[ship.Kind] = true
	}
	for _, ship := range ships {
		for _, c := range ship.Cells {
			if c.X < 0 || c.X >= boardSize || c.Y < 0 || c.Y >= boardSize {
				return ErrOutOfBounds
			}
		}
	}
	occupied := make(map[[2]int]bool, boardSize*boardSize)
	for _, ship := range ships {
		for _, c := range ship.Cells {
			key := [2]int{c.X, c.Y}
			if occupied[key] {
				return ErrOverlap
			}
			occupied[key] = true
		}
	}
	return nil
}
