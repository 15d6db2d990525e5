/*
Copyright © 2022 Jeff Berkowitz (pdxjjb@gmail.com)

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gmofishsauce/asm16/pkg/assembler"
)

var outputPath string
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "asm16 -o OUTPUT.o INPUT.s",
	Short: "A two-pass assembler for a 16-bit instruction set",
	Long: `asm16 assembles a single source file into a relocatable object
file containing a symbol table, a section table, assembled section
contents, and a relocation table, plus a human-readable listing written
alongside the object file.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return assembler.Assemble(args[0], outputPath, verbose)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output object file (required)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "trace pass transitions to stderr")
	rootCmd.MarkFlagRequired("output")
}

// Execute runs the root command and turns any returned error into the
// single fatal stderr line plus exit(1) the CLI contract requires. The
// line is colored red when stderr is a terminal, plain otherwise.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printFatal(err)
		os.Exit(1)
	}
}

func printFatal(err error) {
	msg := fmt.Sprintf("asm16: %v\n", err)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		msg = "\x1b[31m" + msg + "\x1b[0m"
	}
	fmt.Fprint(os.Stderr, msg)
}
