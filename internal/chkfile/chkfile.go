// chkfile.go --  This file is part of goHF project.
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

// Package chkfile persists converged densities in a badger key-value store so
// that later calculations on the same system can restart from them.
package chkfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ErrNotFound is returned by Load for an unknown key.
var ErrNotFound = errors.New("chkfile: no checkpoint")

// Record is one converged calculation.
type Record struct {
	ID         uuid.UUID `json:"id"`
	Key        string    `json:"key"`
	Energy     float64   `json:"energy"`
	NAO        int       `json:"nao"`
	Density    []float64 `json:"density"` // row-major nao×nao
	MOEnergy   []float64 `json:"mo_energy,omitempty"`
	Converged  bool      `json:"converged"`
	CreatedUTC time.Time `json:"created"`
}

// Key identifies a system: geometry fingerprint, basis and method.
func Key(fingerprint, basis, method string) string {
	return fingerprint + "|" + basis + "|" + method
}

// NewRecord copies dm into a record.
func NewRecord(id uuid.UUID, key string, energy float64, dm mat.Symmetric) Record {
	n := dm.SymmetricDim()
	r := Record{ID: id, Key: key, Energy: energy, NAO: n, Density: make([]float64, n*n), CreatedUTC: time.Now().UTC()}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			r.Density[i*n+j] = dm.At(i, j)
		}
	}
	return r
}

// DM returns the stored density.
func (r Record) DM() *mat.SymDense {
	return mat.NewSymDense(r.NAO, append([]float64(nil), r.Density...))
}

type zapLogger struct{ s *zap.SugaredLogger }

func (l zapLogger) Errorf(f string, a ...interface{})   { l.s.Errorf(f, a...) }
func (l zapLogger) Warningf(f string, a ...interface{}) { l.s.Warnf(f, a...) }
func (l zapLogger) Infof(f string, a ...interface{})    { l.s.Debugf(f, a...) }
func (l zapLogger) Debugf(f string, a ...interface{})   { l.s.Debugf(f, a...) }

// Store is a checkpoint database.
type Store struct {
	db  *badger.DB
	log *zap.Logger
}

// Open opens the store at path; an empty path gives an in-memory store.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("chkfile: create %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(zapLogger{log.Sugar()})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("chkfile: open: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save overwrites the record under r.Key.
func (s *Store) Save(r Record) error {
	if len(r.Density) != r.NAO*r.NAO {
		return fmt.Errorf("chkfile: record %s holds %d values for nao %d", r.Key, len(r.Density), r.NAO)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("chkfile: encode: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(r.Key), data)
	})
	if err != nil {
		return fmt.Errorf("chkfile: save %s: %w", r.Key, err)
	}
	s.log.Debug("checkpoint saved", zap.String("key", r.Key), zap.Stringer("id", r.ID))
	return nil
}

// Load returns the record stored under key or ErrNotFound.
func (s *Store) Load(key string) (Record, error) {
	var r Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &r)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, fmt.Errorf("%w for %s", ErrNotFound, key)
	}
	if err != nil {
		return Record{}, fmt.Errorf("chkfile: load %s: %w", key, err)
	}
	return r, nil
}

// Keys lists the stored keys.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}
