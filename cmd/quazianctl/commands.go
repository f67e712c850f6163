package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mind-engage/quazian/internal/quiz"
	"github.com/mind-engage/quazian/internal/roster"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		e.log.Info("schema ready", "driver", e.driver)
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the current slot's quiz for every class",
	Long:  "Generate the current slot's quiz for every class and print the batch result as JSON. Meant for an external scheduler.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		loc, err := e.cfg.Location()
		if err != nil {
			return err
		}
		store := quiz.NewSQLStore(e.db, e.driver, e.events())
		gen := quiz.NewGenerator(store, loc, time.Now, e.log.With("component", "generator"))

		res, err := gen.GenerateCurrentSlot(cmd.Context())
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d class(es) failed", res.Failed)
		}
		return nil
	},
}

var addProfCmd = &cobra.Command{
	Use:   "add-prof",
	Short: "Create an active professor account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		store := roster.NewSQLStore(e.db, e.events())
		u, err := roster.NewService(store, nil, e.log).AddProfessor(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "professor %s created (id %s)\n", u.Email, u.ID)
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print event log entries as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetInt64("since")
		limit, _ := cmd.Flags().GetInt("limit")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		events, err := e.events().Since(cmd.Context(), since, limit)
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	addProfCmd.Flags().String("email", "", "professor email")
	addProfCmd.Flags().String("password", "", "initial password")
	_ = addProfCmd.MarkFlagRequired("email")
	_ = addProfCmd.MarkFlagRequired("password")

	eventsCmd.Flags().Int64("since", 0, "only events with a sequence number above this")
	eventsCmd.Flags().Int("limit", 100, "maximum number of events")
}
