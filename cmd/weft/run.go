package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/definition"
)

var (
	runInput     string
	runInputFile string
)

var runCmd = &cobra.Command{
	Use:   "run <workflow>",
	Short: "Execute a workflow once and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		var input map[string]any
		switch {
		case runInput != "" && runInputFile != "":
			return fmt.Errorf("only one of --input and --input-file may be set")
		case runInput != "":
			if err := json.Unmarshal([]byte(runInput), &input); err != nil {
				return fmt.Errorf("parse --input: %w", err)
			}
		case runInputFile != "":
			data, err := os.ReadFile(runInputFile)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, &input); err != nil {
				return fmt.Errorf("parse %s: %w", runInputFile, err)
			}
		}

		ctx := cmd.Context()
		eng, err := buildEngine(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer eng.Store().Close()

		if err := eng.Store().Migrate(ctx); err != nil {
			return fmt.Errorf("migrate store: %w", err)
		}

		resp, err := eng.Dispatcher().Dispatch(ctx, definition.TriggerManual, args[0], input)
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "input payload as inline JSON")
	runCmd.Flags().StringVar(&runInputFile, "input-file", "", "path to a JSON input payload")
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
