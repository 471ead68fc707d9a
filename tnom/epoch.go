package tnom

// Epoch derives the slash-window epoch from a block height, matching
// the floor-division done by tnom/utility/calculate_slash_window.py in
// the original implementation. window must be > 0; height is expected
// to be non-negative.
func Epoch(height, window int64) int64 {
	if window <= 0 {
		panic("tnom: slash window must be positive")
	}
	return height / window
}
