// stream.go --  This file is part of goHF project.
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

import "sync"

// Stream executes submitted operations in order on its own goroutine, so a
// transfer can run while the caller computes on previously staged data.
type Stream struct {
	tasks chan func() error
	wg    sync.WaitGroup
	mu    sync.Mutex
	err   error
	once  sync.Once
}

// NewStream starts a stream; Close must be called to stop it.
func (a *Arena) NewStream() *Stream {
	s := &Stream{tasks: make(chan func() error, 4)}
	go s.run()
	return s
}

func (s *Stream) run() {
	for task := range s.tasks {
		err := task()
		if err != nil {
			s.mu.Lock()
			if s.err == nil {
				s.err = err
			}
			s.mu.Unlock()
		}
		s.wg.Done()
	}
}

// Submit queues fn behind every previously submitted operation.
func (s *Stream) Submit(fn func() error) {
	s.wg.Add(1)
	s.tasks <- fn
}

// Synchronize waits for all queued operations and returns the first error.
func (s *Stream) Synchronize() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close drains the stream and stops its goroutine.
func (s *Stream) Close() error {
	err := s.Synchronize()
	s.once.Do(func() { close(s.tasks) })
	return err
}

// Stage double-buffers the host chunks [start, end) of a row-major host array
// with rowLen values per row through two device buffers of at most chunk rows
// each: while fn consumes chunk k, chunk k+1 is already being copied.
func (a *Arena) Stage(host []float64, rows, rowLen, chunk int, fn func(r0, r1 int, dev []float64) error) error {
	if rows == 0 {
		return nil
	}
	bufs := [2]*Buffer{}
	for i := range bufs {
		b, err := a.Alloc(chunk * rowLen)
		if err != nil {
			a.Free(bufs[:i]...)
			return err
		}
		bufs[i] = b
	}
	defer a.Free(bufs[0], bufs[1])

	copyStream := a.NewStream()
	defer copyStream.Close()

	enqueue := func(k int) {
		r0 := k * chunk
		r1 := min(r0+chunk, rows)
		dst := bufs[k%2].Float64()
		copyStream.Submit(func() error {
			return a.Memcpy(dst, host[r0*rowLen:r1*rowLen], MemcpyHostToDevice)
		})
	}
	nchunk := (rows + chunk - 1) / chunk
	enqueue(0)
	for k := 0; k < nchunk; k++ {
		if err := copyStream.Synchronize(); err != nil {
			return err
		}
		if k+1 < nchunk {
			enqueue(k + 1)
		}
		r0 := k * chunk
		r1 := min(r0+chunk, rows)
		if err := fn(r0, r1, bufs[k%2].Float64()[:(r1-r0)*rowLen]); err != nil {
			return err
		}
	}
	return nil
}
