package ordering

import (
	"cmp"
	"slices"
	"strings"

	"github.com/desertthunder/listx/internal/models"
)

// Sort returns snapshot ordered under mode. It never modifies snapshot.
//
// In [ModeCustom] lists missing from ranks sort after every ranked list and keep their
// input order among themselves. An empty rank map sorts as [ModeDate].
// Ties keep input order in every mode.
func Sort(mode Mode, ranks map[int64]int, snapshot []models.ListWithCount) []models.ListWithCount {
	sorted := slices.Clone(snapshot)
	if sorted == nil {
		sorted = []models.ListWithCount{}
	}

	switch {
	case mode == ModeName:
		slices.SortStableFunc(sorted, func(a, b models.ListWithCount) int {
			return strings.Compare(a.Name, b.Name)
		})
	case mode == ModeCustom && len(ranks) > 0:
		slices.SortStableFunc(sorted, func(a, b models.ListWithCount) int {
			ra, oka := ranks[a.ID]
			rb, okb := ranks[b.ID]
			switch {
			case oka && okb:
				return cmp.Compare(ra, rb)
			case oka:
				return -1
			case okb:
				return 1
			default:
				return 0
			}
		})
	default:
		slices.SortStableFunc(sorted, func(a, b models.ListWithCount) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}
	return sorted
}
