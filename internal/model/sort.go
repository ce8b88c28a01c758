package model

import (
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// SortChildren puts children in canonical scan order: size descending, ties
// broken by byte-wise name ascending. The order does not depend on the order
// in which children were produced.
func SortChildren(children []Node) {
	sort.Slice(children, func(i, j int) bool {
		a, b := &children[i], &children[j]
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		return a.Name < b.Name
	})
}

// SortField defines what a display listing is sorted by.
type SortField int

const (
	SortBySize SortField = iota
	SortByName
	SortByCount
)

// SortOrder defines ascending or descending.
type SortOrder int

const (
	SortDesc SortOrder = iota
	SortAsc
)

// SortConfig holds display sort preferences.
type SortConfig struct {
	Field SortField
	Order SortOrder
	// DirsFirst keeps directories before files regardless of sort.
	DirsFirst bool
}

// DefaultSort returns the canonical order: size descending, no grouping.
func DefaultSort() SortConfig {
	return SortConfig{Field: SortBySize, Order: SortDesc}
}

// SortForDisplay returns a re-ordered copy of children for presentation.
// Stored trees always keep the canonical order from SortChildren.
func SortForDisplay(children []Node, cfg SortConfig) []Node {
	out := make([]Node, len(children))
	copy(out, children)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]

		if cfg.DirsFirst {
			aDir, bDir := a.IsDir(), b.IsDir()
			if aDir != bDir {
				return aDir
			}
		}

		// Swap for descending so equal items still compare false.
		if cfg.Order == SortDesc {
			a, b = b, a
		}

		switch cfg.Field {
		case SortByName:
			return natural.Less(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case SortByCount:
			return a.Count() < b.Count()
		default:
			return a.Size < b.Size
		}
	})
	return out
}
