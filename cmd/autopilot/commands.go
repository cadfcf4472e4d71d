package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/autopilot/internal/maneuver"
	"github.com/banshee-data/autopilot/internal/monitoring"
	"github.com/banshee-data/autopilot/internal/runlog"
)

func newScriptsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scripts",
		Short: "Print the effective maneuver scripts as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, o)
			if err != nil {
				return err
			}
			scripts := maneuver.Builtin()
			if cfg.Maneuver.Scripts != "" {
				if scripts, err = maneuver.LoadScripts(cfg.Maneuver.Scripts); err != nil {
					return err
				}
			}
			return maneuver.EncodeScripts(cmd.OutOrStdout(), scripts)
		},
	}
}

func newMigrateCmd(o *options) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the run log schema up to date, or roll back one version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openRunlog(cmd, o)
			if err != nil {
				return err
			}
			defer db.Close()
			if down {
				if err := db.MigrateDown(); err != nil {
					return err
				}
			}
			v, dirty, err := db.MigrateVersion()
			if err != nil {
				return err
			}
			latest, err := runlog.LatestVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (latest %d, dirty %t)\n", v, latest, dirty)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	return cmd
}

func newRunsCmd(o *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openRunlog(cmd, o)
			if err != nil {
				return err
			}
			defer db.Close()
			runs, err := db.Runs(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range runs {
				outcome := r.Outcome
				if outcome == "" {
					outcome = "running"
				}
				var took time.Duration
				if !r.Finished.IsZero() {
					took = r.Finished.Sub(r.Started).Round(time.Millisecond)
				}
				fmt.Fprintf(out, "%s  %s  %-11s %8s  transitions=%d maneuvers=%d marks=[%s]\n",
					r.ID, r.Started.Format(time.RFC3339), outcome, took,
					r.Transitions, r.Maneuvers, strings.Join(r.Marks, ","))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to list")
	return cmd
}

func openRunlog(cmd *cobra.Command, o *options) (*runlog.DB, error) {
	cfg, err := loadConfig(cmd, o)
	if err != nil {
		return nil, err
	}
	if cfg.Runlog.Path == "" {
		return nil, fmt.Errorf("no run log configured; set --runlog or [runlog] path")
	}
	return runlog.Open(cfg.Runlog.Path, monitoring.Component("runlog"))
}
