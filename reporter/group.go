package reporter

import "github.com/evalrelay/evalrelay/pkg/types"

// runGroup is the slice of items from one batch addressed to a single run.
type runGroup struct {
	handle types.RunHandle
	items  []types.TelemetryItem
}

// groupByRun partitions a batch by run handle. Relative order is preserved
// within each group; groups are ordered by first appearance in the batch.
// The wire protocol addresses one run per request, so each group becomes
// one "append items" call.
func groupByRun(batch []queuedEntry) []runGroup {
	index := make(map[types.RunHandle]int, len(batch))
	var groups []runGroup
	for _, e := range batch {
		i, ok := index[e.handle]
		if !ok {
			i = len(groups)
			index[e.handle] = i
			groups = append(groups, runGroup{handle: e.handle})
		}
		groups[i].items = append(groups[i].items, e.item)
	}
	return groups
}
