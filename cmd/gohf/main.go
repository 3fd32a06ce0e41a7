// main.go --  This file is part of goHF project.
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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"gohf/internal/config"
	"gohf/internal/xc"
)

var (
	settingsPath string
	logLevel     string
	logFile      string

	rootCmd = &cobra.Command{
		Use:   "gohf",
		Short: "Closed-shell Hartree-Fock and Kohn-Sham DFT",
		Long: `gohf runs restricted Hartree-Fock and Kohn-Sham calculations with
density fitting or direct four-centre integrals, and computes analytical
nuclear gradients and Hessians of the converged states.`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run input.inp",
		Short: "Run the calculation described by an input file",
		Long: `Run reads an input file and writes the report next to it with the
extension .out. Settings from --settings are applied first; keywords of the
input file override them.`,
		Args: cobra.ExactArgs(1),
		RunE: runInput,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the default settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.Default().Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	functionalsCmd = &cobra.Command{
		Use:   "functionals",
		Short: "List the available methods",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, n := range xc.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
		},
	}
)

func init() {
	runCmd.Flags().StringVarP(&settingsPath, "settings", "s", "", "YAML settings file")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "override the log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&logFile, "log-file", "", "also write the structured log to this file")
	rootCmd.AddCommand(runCmd, configCmd, functionalsCmd)
}

// outputPath replaces the extension of the input file with .out.
func outputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".out"
}

func runInput(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	lines, err := config.ReadLines(args[0])
	if err != nil {
		return fmt.Errorf("cannot read input file: %w", err)
	}
	base := config.Default()
	if settingsPath != "" {
		if base, err = config.Load(settingsPath); err != nil {
			return err
		}
	}
	in, err := config.ParseInput(lines, base)
	if err != nil {
		return err
	}
	if in.Settings != "" && settingsPath == "" {
		if base, err = config.Load(in.Settings); err != nil {
			return err
		}
		if in, err = config.ParseInput(lines, base); err != nil {
			return err
		}
	}
	if logLevel != "" {
		in.Config.LogLevel = logLevel
	}
	out := outputPath(args[0])
	fmt.Fprintln(cmd.OutOrStdout(), "Output file:", out)
	sum, err := run(ctx, in, out, logFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Final total energy = %.10f a.u. (%s)\n", sum.Energy, sum.Outcome)
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
