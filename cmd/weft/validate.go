package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/definition"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Parse and validate workflow definition files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed int
		for _, path := range args {
			wf, err := definition.LoadFile(path)
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s v%s, %d steps)\n",
				path, wf.Name, wf.Version, len(wf.Steps()))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files invalid", failed, len(args))
		}
		return nil
	},
}
