package decoder

import "github.com/ieee0824/ctcdecode-go/internal/mathutil"

// BestPath returns the CTC best path: the argmax symbol of every timestep with
// repeats collapsed and blanks removed, together with the timestep of each
// emitted label.
func BestPath(probs [][]float64, blank int) (labels, timesteps []int) {
	prev := -1
	for t, row := range probs {
		idx := mathutil.Argmax(row)
		if idx != blank && idx != prev {
			labels = append(labels, idx)
			timesteps = append(timesteps, t)
		}
		prev = idx
	}
	return labels, timesteps
}
