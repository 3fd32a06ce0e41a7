// config.go --  This file is part of goHF project.
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

// Package config holds the settings of a calculation: YAML settings files
// with defaults and validation, and the block-structured input file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"gohf/internal/errs"
	"gohf/internal/hessian"
	"gohf/internal/scf"
)

// Device is the compute arena of the calculation.
type Device struct {
	Name     string `yaml:"name" validate:"required"`
	MemoryMB int64  `yaml:"memory_mb" validate:"gte=1"`
	Workers  int    `yaml:"workers" validate:"gte=1"`
}

// Aux selects the auxiliary basis. An empty Name generates an even-tempered
// set from the orbital basis.
type Aux struct {
	Name string  `yaml:"name"`
	Beta float64 `yaml:"beta" validate:"gt=1"`
	LMax int     `yaml:"lmax" validate:"gte=-1,lte=5"`
}

type Config struct {
	Method string `yaml:"method" validate:"required"`
	Basis  string `yaml:"basis" validate:"required"`
	Aux    Aux    `yaml:"aux"`
	Charge int    `yaml:"charge"`
	Spin   int    `yaml:"spin" validate:"gte=0"`

	Device     Device `yaml:"device"`
	LogLevel   string `yaml:"log_level" validate:"oneof=debug info warn error"`
	Checkpoint string `yaml:"checkpoint"`
	// MetricsFile receives the Prometheus text exposition at exit.
	MetricsFile string `yaml:"metrics_file"`

	SCF     scf.Options     `yaml:"scf"`
	Hessian hessian.Options `yaml:"hessian"`
}

func Default() Config {
	return Config{
		Method:   "hf",
		Basis:    "sto-3g",
		Aux:      Aux{Beta: 2.0, LMax: -1},
		Device:   Device{Name: "cpu0", MemoryMB: 1024, Workers: 1},
		LogLevel: "info",
		SCF:      scf.DefaultOptions(),
		Hessian:  hessian.DefaultOptions(),
	}
}

var validate = validator.New()

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, len(ve))
			for i, fe := range ve {
				msgs[i] = fmt.Sprintf("%s fails %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
			}
			return errs.New(errs.KindInvalidInput, "config.Validate", "%s", strings.Join(msgs, "; "))
		}
		return errs.Wrap(errs.KindInvalidInput, "config.Validate", err, "")
	}
	return nil
}

// Parse decodes YAML on top of the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errs.Wrap(errs.KindInvalidInput, "config.Parse", err, "")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads a YAML settings file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Marshal encodes the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
