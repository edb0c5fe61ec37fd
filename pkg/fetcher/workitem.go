package fetcher

import "github.com/HariharPal/LC-Fetch/pkg/record"

type workState int

const (
	statePending workState = iota
	stateInFlight
	stateDone
)

// workItem tracks one key through a run. Only the coordinator touches it.
type workItem struct {
	key   record.Key
	state workState
}

func (w *workItem) start() {
	w.state = stateInFlight
}

func (w *workItem) finish() {
	w.state = stateDone
}

func (w *workItem) pending() bool {
	return w.state == statePending
}

// newWorkItems deduplicates keys, keeping first-occurrence order.
func newWorkItems(keys []record.Key) ([]record.Key, map[record.Key]*workItem) {
	unique := make([]record.Key, 0, len(keys))
	items := make(map[record.Key]*workItem, len(keys))
	for _, key := range keys {
		if _, seen := items[key]; seen {
			continue
		}
		items[key] = &workItem{key: key}
		unique = append(unique, key)
	}
	return unique, items
}
