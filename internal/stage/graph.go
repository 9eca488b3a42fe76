package stage

// criticalIndexes are the stages whose failure undermines the rest of the
// analysis: facts, parties, dispute, precedents, strength, and strategy,
// plus index 12 for extended catalogs.
var criticalIndexes = map[int]struct{}{0: {}, 1: {}, 2: {}, 4: {}, 6: {}, 8: {}, 12: {}}

// IsCritical reports whether the stage at index gets the extended retry budget.
func IsCritical(index int) bool {
	if index < 0 {
		return false
	}
	if _, ok := criticalIndexes[index]; ok {
		return true
	}
	return index%5 == 0
}

// Dependencies returns the earlier stage indexes whose output feeds index,
// nearest first.
func Dependencies(index int) []int {
	switch {
	case index <= 0:
		return nil
	case index <= 3:
		return []int{index - 1}
	case index <= 8:
		return []int{index - 1, index - 2}
	default:
		return []int{index - 1, index - 2, index - 3}
	}
}

// Dependents returns up to three following stage indexes within total.
func Dependents(index, total int) []int {
	var out []int
	for next := index + 1; next <= index+3 && next < total; next++ {
		out = append(out, next)
	}
	return out
}
