package book

// Apply folds one incoming level into the ladder under strategy and returns
// the operation performed. The slot is found by binary search; only the
// level at that slot can share the incoming price.
func (l *Ladder[P, Q]) Apply(strategy Strategy, incoming Level[P, Q]) Operation {
	i := l.Locate(incoming.Price)

	var existing Level[P, Q]
	found := i < len(l.levels)
	if found {
		existing = l.levels[i]
	}

	decision := Decide(strategy, incoming, existing, found)
	switch decision.Operation {
	case Create, Displace:
		l.insertAt(i, decision.Level)
	case Aggregate, Replace:
		l.replaceAt(i, decision.Level)
	case Remove:
		l.removeAt(i)
	case Noop:
		return Noop
	}

	l.assertValid()
	return decision.Operation
}

// ApplyAll applies levels in order and returns how many changed the ladder.
func (l *Ladder[P, Q]) ApplyAll(strategy Strategy, levels []Level[P, Q]) int {
	changed := 0
	for _, level := range levels {
		if l.Apply(strategy, level) != Noop {
			changed++
		}
	}
	return changed
}
