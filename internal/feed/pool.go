package feed

import (
	"sync"

	"quant_go/internal/domain"
)

// updatePool recycles DepthUpdate values between reads to limit hot-path
// allocation; the level slices keep their capacity across reuse.
var updatePool = sync.Pool{
	New: func() interface{} {
		return &domain.DepthUpdate{}
	},
}

// AcquireUpdate gets a zeroed DepthUpdate from the pool.
func AcquireUpdate() *domain.DepthUpdate {
	return updatePool.Get().(*domain.DepthUpdate)
}

// ReleaseUpdate resets the update and returns it to the pool. Callers must
// not hold references to it afterwards; the validator copies the level
// slices into the snapshot before release.
func ReleaseUpdate(u *domain.DepthUpdate) {
	if u == nil {
		return
	}
	u.Reset()
	updatePool.Put(u)
}
