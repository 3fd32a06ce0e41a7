// device_test.go --  This file is part of goHF project.
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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"gohf/internal/errs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAllocBudget(t *testing.T) {
	dev := New("test", 1000*8, 2)
	arena, err := dev.Acquire(context.Background(), "t")
	require.NoError(t, err)
	defer arena.Release()

	a, err := arena.Alloc(600)
	require.NoError(t, err)
	assert.Equal(t, 400, arena.Available())

	_, err = arena.Alloc(500)
	require.ErrorIs(t, err, errs.ErrResourceExhausted)

	arena.Free(a)
	b, err := arena.Alloc(500)
	require.NoError(t, err)
	st := arena.Stats()
	assert.Equal(t, 1, st.Reused)
	assert.Equal(t, int64(600*8), st.Peak)
	assert.Len(t, b.Float64(), 500)
}

func TestReusedBufferIsZeroed(t *testing.T) {
	dev := New("test", 100*8, 1)
	arena, err := dev.Acquire(context.Background(), "t")
	require.NoError(t, err)
	defer arena.Release()

	a, err := arena.Alloc(10)
	require.NoError(t, err)
	for i := range a.Float64() {
		a.Float64()[i] = 7
	}
	arena.Free(a)
	b, err := arena.Alloc(10)
	require.NoError(t, err)
	for _, v := range b.Float64() {
		assert.Zero(t, v)
	}
}

func TestPlan(t *testing.T) {
	dev := New("test", 1000*8, 1)
	arena, err := dev.Acquire(context.Background(), "t")
	require.NoError(t, err)
	defer arena.Release()

	n, err := arena.Plan("plan", 50, 30, 100)
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	n, err = arena.Plan("plan", 5, 30, 100)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = arena.Plan("plan", 5, 2000, 0)
	assert.ErrorIs(t, err, errs.ErrResourceExhausted)
}

func TestSingleOwner(t *testing.T) {
	dev := New("test", 1<<20, 1)
	first, err := dev.Acquire(context.Background(), "first")
	require.NoError(t, err)

	_, ok := dev.TryAcquire("second")
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = dev.Acquire(ctx, "second")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = first.Alloc(100)
	require.NoError(t, err)
	first.Release()
	first.Release()

	second, ok := dev.TryAcquire("second")
	require.True(t, ok)
	assert.Equal(t, int64(0), second.Stats().InUse)
	second.Release()
}

func TestReleasedArenaCannotTouchNextOwner(t *testing.T) {
	dev := New("test", 100*bytesPerFloat, 1)
	first, err := dev.Acquire(context.Background(), "first")
	require.NoError(t, err)
	stale, err := first.Alloc(10)
	require.NoError(t, err)
	first.Release()

	second, err := dev.Acquire(context.Background(), "second")
	require.NoError(t, err)
	defer second.Release()
	held, err := second.Alloc(60)
	require.NoError(t, err)

	_, err = first.Alloc(50)
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	assert.Equal(t, 40, second.Available())

	first.Free(held, stale)
	assert.Equal(t, 40, second.Available())
	assert.Equal(t, int64(60*bytesPerFloat), second.Stats().InUse)
}

func TestLaunchRunsEveryTask(t *testing.T) {
	dev := New("test", 1<<20, 4)
	arena, err := dev.Acquire(context.Background(), "t")
	require.NoError(t, err)
	defer arena.Release()

	var count atomic.Int64
	require.NoError(t, arena.Launch(context.Background(), 100, func(i int) error {
		count.Add(int64(i))
		return nil
	}))
	assert.Equal(t, int64(4950), count.Load())

	boom := errors.New("boom")
	err = arena.Launch(context.Background(), 10, func(i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestLaunchPartialSlots(t *testing.T) {
	dev := New("test", 1<<20, 3)
	arena, err := dev.Acquire(context.Background(), "t")
	require.NoError(t, err)
	defer arena.Release()

	sums := make([]int, 3)
	used, err := arena.LaunchPartial(context.Background(), 10, func(w, i int) error {
		sums[w] += i
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, used)
	assert.Equal(t, 45, sums[0]+sums[1]+sums[2])
}

func TestStageVisitsAllRowsInOrder(t *testing.T) {
	dev := New("test", 1<<20, 2)
	arena, err := dev.Acquire(context.Background(), "t")
	require.NoError(t, err)
	defer arena.Release()

	rows, rowLen := 7, 3
	host := make([]float64, rows*rowLen)
	for i := range host {
		host[i] = float64(i)
	}
	var got []float64
	var spans [][2]int
	err = arena.Stage(host, rows, rowLen, 3, func(r0, r1 int, dev []float64) error {
		spans = append(spans, [2]int{r0, r1})
		got = append(got, dev...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, host, got)
	assert.Equal(t, [][2]int{{0, 3}, {3, 6}, {6, 7}}, spans)
	assert.Equal(t, 3, arena.Stats().Copies)
}
