package plan

import "sort"

// unorderedRank gives the front-loading priority of steps that only claim
// resources and do not depend on earlier steps' side effects. Slow and
// uncertain requests go first.
var unorderedRank = map[Kind]int{
	KindOpenRequest: 0,
	KindCooperative: 1,
	KindContainer:   2,
	KindInventory:   3,
}

// Ordered reports whether steps of kind k must keep their construction order.
func Ordered(k Kind) bool {
	_, ok := unorderedRank[k]
	return !ok
}

// Organize flattens p into execution order: unordered steps first, sorted by
// rank (stable within a rank), then ordered steps in their original order.
func Organize(p *Plan) []Step {
	steps := p.Flatten()
	var unordered, ordered []Step
	for _, s := range steps {
		if Ordered(s.Kind()) {
			ordered = append(ordered, s)
		} else {
			unordered = append(unordered, s)
		}
	}
	sort.SliceStable(unordered, func(i, j int) bool {
		return unorderedRank[unordered[i].Kind()] < unorderedRank[unordered[j].Kind()]
	})
	return append(unordered, ordered...)
}
