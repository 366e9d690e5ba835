package app

import (
	"math/rand/v2"

	"github.com/auxroom/auxroom/internal/domain"
)

// ShuffleTracks returns a uniformly random permutation of tracks using
// Fisher-Yates. The input slice is left untouched; the permutation is stored
// separately as the room's shuffled queue.
func ShuffleTracks(tracks []domain.Track) []domain.Track {
	out := make([]domain.Track, len(tracks))
	copy(out, tracks)
	for i := len(out) - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
