package worker

import (
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"
)

// Applied is the set of write ids applied in the current epoch.
type Applied struct {
	mu  sync.Mutex
	ids *roaring64.Bitmap
}

func NewApplied() *Applied {
	return &Applied{ids: roaring64.New()}
}

// Add marks id applied and reports false if it already was.
func (a *Applied) Add(id uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ids.CheckedAdd(id)
}

func (a *Applied) Contains(id uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ids.Contains(id)
}

func (a *Applied) Len() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ids.GetCardinality()
}

func (a *Applied) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids.Clear()
}
