package ordersvc

import (
	"sort"
	"sync"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus"
)

const lockStripes = 64

// stripedLock serializes publishing per partition key within this process.
type stripedLock struct {
	stripes [lockStripes]sync.Mutex
}

// lock takes the stripes of keys in ascending order and returns the matching unlock.
func (l *stripedLock) lock(keys ...string) func() {
	held := map[int]bool{}
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		i := bus.Partition([]byte(k), lockStripes)
		if !held[i] {
			held[i] = true
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)

	for _, i := range idx {
		l.stripes[i].Lock()
	}

	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			l.stripes[idx[j]].Unlock()
		}
	}
}
