package game

// SpatialService is the boundary to the spatial layer. Pathfinding and
// visibility are computed elsewhere; movement and range checks consume
// the results as pure functions.
type SpatialService interface {
	// GetPaths returns reachable positions from start with their
	// movement cost, and the step sequence for each.
	GetPaths(start Position) (map[Position]int, map[Position][]Position)

	// GetFOV returns the set of positions visible from start.
	GetFOV(start Position) map[Position]bool
}

// chebyshev is the grid distance used for reach checks: diagonal steps
// count as one.
func chebyshev(a, b Position) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}
