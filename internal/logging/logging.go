// logging.go --  This file is part of goHF project.
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

// Package logging builds the zap loggers of the program: a structured log on
// stderr (and optionally a file) and the plain output report.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production logger at level, writing to stderr and to path
// when it is not empty.
func New(level, path string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	if path != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, path)
	}
	return cfg.Build()
}

// Report writes the human-readable output file: message only, no level or
// timestamp.
func Report(path string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zapcore.EncoderConfig{MessageKey: "msg", LineEnding: zapcore.DefaultLineEnding}
	cfg.OutputPaths = []string{path}
	cfg.Sampling = nil
	return cfg.Build()
}

// Delimiter is the separator line of the output report.
var Delimiter = strings.Repeat("-", 70)

// Banner is printed at the top of every output report.
const Banner = `
              __  __  ____      |
             /\ \/\ \/\  __\    | gohf: closed-shell HF and Kohn-Sham DFT
   __     ___\ \ \_\ \ \ \_/    | density fitting, direct SCF,
 /'_ ` + "`" + `\  / __` + "`" + `\ \  _  \ \  _\   | analytical gradients and Hessians
/\ \L\ \/\ \L\ \ \ \ \ \ \ \/   |
\ \____ \ \____/\ \_\ \_\ \_\   | HF stands for Himicheskaya Fizika
 \/___L\ \/___/  \/_/\/_/\/_/   | Have Fun!!!
   /\____/                      |
   \_/__/                       |
`
