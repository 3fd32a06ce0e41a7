// device.go --  This file is part of goHF project.
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

package device

import (
	"context"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"gohf/internal/errs"
)

// Device is a compute device with a fixed memory budget. One Arena owns the
// budget at a time.
type Device struct {
	Name    string
	Workers int
	pool    *MemoryPool
	owner   *semaphore.Weighted
}

// New creates a device with budget bytes of memory. workers <= 0 uses
// GOMAXPROCS.
func New(name string, budget int64, workers int) *Device {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(-1)
	}
	return &Device{
		Name:    name,
		Workers: workers,
		pool:    newMemoryPool(budget),
		owner:   semaphore.NewWeighted(1),
	}
}

// Arena is the exclusive view of a device held by one calculation.
type Arena struct {
	ID    string
	dev   *Device
	owner string
	mu    sync.Mutex
	done  bool
}

// Acquire blocks until the device is free or ctx ends.
func (d *Device) Acquire(ctx context.Context, owner string) (*Arena, error) {
	if err := d.owner.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &Arena{ID: uuid.NewString(), dev: d, owner: owner}, nil
}

// TryAcquire takes the device only if nobody owns it.
func (d *Device) TryAcquire(owner string) (*Arena, bool) {
	if !d.owner.TryAcquire(1) {
		return nil, false
	}
	return &Arena{ID: uuid.NewString(), dev: d, owner: owner}, true
}

// Release frees every buffer of the arena and hands the device back.
// It is safe to call more than once.
func (a *Arena) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return
	}
	a.done = true
	a.dev.pool.reset()
	a.dev.owner.Release(1)
}

func (a *Arena) Owner() string  { return a.owner }
func (a *Arena) Device() *Device { return a.dev }
func (a *Arena) Workers() int    { return a.dev.Workers }

// Alloc reserves n float64 values. A released arena cannot allocate.
func (a *Arena) Alloc(n int) (*Buffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return nil, errs.New(errs.KindInvalidInput, "device.Alloc", "arena %s of %s already released", a.ID, a.owner)
	}
	return a.dev.pool.Allocate("device.Alloc", n)
}

// Free returns buffers to the pool. After Release it does nothing: the
// buffers went back with the arena and the budget may have a new owner.
func (a *Arena) Free(bufs ...*Buffer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return
	}
	for _, b := range bufs {
		a.dev.pool.Free(b)
	}
}

// Available is the free budget in float64 values.
func (a *Arena) Available() int {
	return int(a.dev.pool.available() / bytesPerFloat)
}

func (a *Arena) Stats() Stats { return a.dev.pool.snapshot() }

// Plan returns how many items of perItem floats fit next to fixed floats,
// capped at total. The device is exhausted when not even one item fits.
func (a *Arena) Plan(op string, total, perItem, fixed int) (int, error) {
	if total <= 0 {
		return 0, nil
	}
	free := a.Available() - fixed
	if perItem <= 0 {
		perItem = 1
	}
	n := free / perItem
	if n < 1 {
		return 0, errs.New(errs.KindResourceExhausted, op, "one batch item needs %d floats plus %d fixed, %d available", perItem, fixed, a.Available())
	}
	if n > total {
		n = total
	}
	return n, nil
}

// Memcpy copies len(src) values; dst must be at least as long.
func (a *Arena) Memcpy(dst, src []float64, kind MemcpyKind) error {
	if len(dst) < len(src) {
		return errs.New(errs.KindInvalidInput, "device.Memcpy", "dst holds %d values, src %d", len(dst), len(src))
	}
	copy(dst, src)
	if kind != MemcpyDeviceToDevice {
		a.dev.pool.countCopy(len(src))
	}
	return nil
}

// Launch runs kernel(i) for i in [0, n) as independent tasks on the device
// workers and returns after all of them finished.
func (a *Arena) Launch(ctx context.Context, n int, kernel func(i int) error) error {
	a.dev.pool.countBatch()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.dev.Workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return kernel(i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// LaunchPartial runs kernel(worker, i) for every i and gives every worker its
// own slot so partial results can be accumulated without locks and reduced
// after the barrier. It returns the number of slots used.
func (a *Arena) LaunchPartial(ctx context.Context, n int, kernel func(worker, i int) error) (int, error) {
	a.dev.pool.countBatch()
	workers := a.dev.Workers
	if workers > n {
		workers = n
	}
	if workers < 1 {
		return 0, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := w; i < n; i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := kernel(w, i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return workers, g.Wait()
}
