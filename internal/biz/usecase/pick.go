package usecase

// weightedPick returns one item chosen with probability proportional to its
// weight. Negative weights count as zero; if every weight is zero the pick is
// uniform. ok is false only for an empty input.
func weightedPick[T any](r *lockedRand, items []T, weights []int) (item T, ok bool) {
	if len(items) == 0 {
		return item, false
	}
	if len(items) == 1 {
		return items[0], true
	}

	total := 0
	for i := range items {
		if i < len(weights) && weights[i] > 0 {
			total += weights[i]
		}
	}
	if total == 0 {
		return items[r.Intn(len(items))], true
	}

	n := r.Intn(total)
	for i := range items {
		if i >= len(weights) || weights[i] <= 0 {
			continue
		}
		if n < weights[i] {
			return items[i], true
		}
		n -= weights[i]
	}
	return items[len(items)-1], true
}

// uniformPick returns a uniformly random item
func uniformPick[T any](r *lockedRand, items []T) (item T, ok bool) {
	if len(items) == 0 {
		return item, false
	}
	return items[r.Intn(len(items))], true
}
