// memory.go --  This file is part of goHF project.
// Mirzaeva Irina, 2023
//
//	goHF is distributed in the hope that it will be useful,
//	but WITHOUT ANY WARRANTY; without even the implied warranty
//	of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
//	See the GNU General Public License for more details.
//
//	You should have received a copy of the GNU General Public License
//	along with this program.  If not, see http://www.gnu.org/licenses/
//
// ------------------------------------------------

// Package device models the accelerator a calculation runs on: a memory
// budget handed to one owner at a time, pooled buffers, copy streams and
// data-parallel kernel launches. Without an accelerator the same model runs
// on host goroutines.
package device

import (
	"sort"
	"sync"

	"gohf/internal/errs"
)

// MemcpyKind specifies the direction of a transfer.
type MemcpyKind int

const (
	MemcpyHostToDevice MemcpyKind = iota
	MemcpyDeviceToHost
	MemcpyDeviceToDevice
)

const bytesPerFloat = 8

// Buffer is a device allocation of float64 values.
type Buffer struct {
	data []float64
	n    int
}

// Float64 is the usable view of the buffer.
func (b *Buffer) Float64() []float64 { return b.data[:b.n] }

// Len is the number of float64 values.
func (b *Buffer) Len() int { return b.n }

func (b *Buffer) bytes() int64 { return int64(b.n) * bytesPerFloat }

func (b *Buffer) capBytes() int64 { return int64(cap(b.data)) * bytesPerFloat }

// Stats describes pool usage in bytes.
type Stats struct {
	Budget  int64
	InUse   int64
	Peak    int64
	Cached  int64
	Reused  int
	Allocs  int
	Copies  int
	CopyB   int64
	Batches int
}

// MemoryPool hands out buffers against a fixed budget and keeps freed blocks
// for reuse.
type MemoryPool struct {
	mu       sync.Mutex
	budget   int64
	live     map[*Buffer]struct{}
	freeList []*Buffer
	stats    Stats
}

func newMemoryPool(budget int64) *MemoryPool {
	return &MemoryPool{budget: budget, live: map[*Buffer]struct{}{}, stats: Stats{Budget: budget}}
}

// Allocate returns a zeroed buffer of n float64 values.
func (mp *MemoryPool) Allocate(op string, n int) (*Buffer, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	need := int64(n) * bytesPerFloat
	if mp.stats.InUse+need > mp.budget {
		return nil, errs.New(errs.KindResourceExhausted, op, "need %d bytes, %d of %d in use", need, mp.stats.InUse, mp.budget)
	}
	// best fit from the free list
	idx := sort.Search(len(mp.freeList), func(i int) bool { return cap(mp.freeList[i].data) >= n })
	var b *Buffer
	if idx < len(mp.freeList) {
		b = mp.freeList[idx]
		mp.freeList = append(mp.freeList[:idx], mp.freeList[idx+1:]...)
		mp.stats.Cached -= b.capBytes()
		mp.stats.Reused++
		b.n = n
		clear(b.data[:n])
	} else {
		b = &Buffer{data: make([]float64, n), n: n}
	}
	mp.live[b] = struct{}{}
	mp.stats.InUse += b.bytes()
	mp.stats.Allocs++
	if mp.stats.InUse > mp.stats.Peak {
		mp.stats.Peak = mp.stats.InUse
	}
	return b, nil
}

// Free returns a buffer to the pool. Freeing nil or an unknown buffer is a no-op.
func (mp *MemoryPool) Free(b *Buffer) {
	if b == nil {
		return
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if _, ok := mp.live[b]; !ok {
		return
	}
	delete(mp.live, b)
	mp.stats.InUse -= b.bytes()
	mp.stats.Cached += b.capBytes()
	idx := sort.Search(len(mp.freeList), func(i int) bool { return cap(mp.freeList[i].data) >= cap(b.data) })
	mp.freeList = append(mp.freeList, nil)
	copy(mp.freeList[idx+1:], mp.freeList[idx:])
	mp.freeList[idx] = b
}

// reset drops every live and cached block.
func (mp *MemoryPool) reset() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.live = map[*Buffer]struct{}{}
	mp.freeList = nil
	mp.stats.InUse = 0
	mp.stats.Cached = 0
}

func (mp *MemoryPool) available() int64 {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.budget - mp.stats.InUse
}

func (mp *MemoryPool) snapshot() Stats {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.stats
}

func (mp *MemoryPool) countCopy(n int) {
	mp.mu.Lock()
	mp.stats.Copies++
	mp.stats.CopyB += int64(n) * bytesPerFloat
	mp.mu.Unlock()
}

func (mp *MemoryPool) countBatch() {
	mp.mu.Lock()
	mp.stats.Batches++
	mp.mu.Unlock()
}
