package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/event"
	"github.com/weftlabs/weft/id"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <execution-id>",
	Short: "Resume a suspended execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		execID, err := id.ParseExecutionID(args[0])
		if err != nil {
			return fmt.Errorf("invalid execution id: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		eng, err := buildEngine(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer eng.Store().Close()

		resp, err := eng.Dispatcher().Resume(ctx, execID)
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

var (
	approveStep     string
	approveDecision string
)

var approveCmd = &cobra.Command{
	Use:   "approve <execution-id>",
	Short: "Deliver an approval decision to a suspended gate step and resume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		execID, err := id.ParseExecutionID(args[0])
		if err != nil {
			return fmt.Errorf("invalid execution id: %w", err)
		}
		if approveStep == "" {
			return fmt.Errorf("--step is required")
		}

		var decision any = map[string]any{"approved": true}
		if approveDecision != "" {
			if err := json.Unmarshal([]byte(approveDecision), &decision); err != nil {
				return fmt.Errorf("parse --decision: %w", err)
			}
		}
		payload, err := json.Marshal(decision)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		eng, err := buildEngine(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer eng.Store().Close()

		if _, err := eng.Bus().Publish(ctx, event.ApprovalName(execID.String(), approveStep), payload); err != nil {
			return err
		}

		resp, err := eng.Dispatcher().Resume(ctx, execID)
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

func init() {
	approveCmd.Flags().StringVar(&approveStep, "step", "", "suspended approval.gate step name")
	approveCmd.Flags().StringVar(&approveDecision, "decision", "", `decision payload as JSON (default {"approved":true})`)
}
