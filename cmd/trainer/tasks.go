package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/training-engine/internal/challenge"
	"github.com/terra-clan/training-engine/internal/config"
)

var tasksDir string

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Validate and list the task catalog",
	Long: `Load every task definition, validate it and print a summary.

Exits non-zero if any file fails to parse or validate, which makes it usable
as a pre-commit check for catalog edits.`,
	Args: cobra.NoArgs,
	RunE: runTasks,
}

var challengeDate string

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Print the daily challenge for a date",
	Long: `Print the daily challenge generated for a calendar date.

Examples:
  trainer challenge                    # today
  trainer challenge --date 2026-01-03`,
	Args: cobra.NoArgs,
	RunE: runChallenge,
}

func init() {
	tasksCmd.Flags().StringVar(&tasksDir, "dir", os.Getenv("TASKS_DIR"), "task directory (default: built-in catalog)")
	challengeCmd.Flags().StringVar(&challengeDate, "date", "", "date as YYYY-MM-DD (default: today)")

	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(challengeCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(tasksDir)
	if err != nil {
		return err
	}
	list := cat.List()

	if jsonOutput {
		return printJSON(cmd, list)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tDIFFICULTY\tTIME LIMIT\tXP\tBADGE")
	for _, def := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\n",
			def.ID, def.Type, def.Difficulty, def.TimeLimit, def.XPReward, def.BadgeID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d tasks OK\n", len(list))
	return nil
}

func runChallenge(cmd *cobra.Command, args []string) error {
	loc, err := config.EngineConfig{Timezone: os.Getenv("TRAINER_TIMEZONE")}.Location()
	if err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	date := time.Now().In(loc)
	if challengeDate != "" {
		date, err = time.ParseInLocation(challenge.DateLayout, challengeDate, loc)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", challengeDate, err)
		}
	}

	c := challenge.Generate(date)
	if jsonOutput {
		return printJSON(cmd, c)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", c.DateGenerated, c.Description)
	fmt.Fprintf(cmd.OutOrStdout(), "  id:     %s\n", c.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "  target: %d\n", c.Target)
	fmt.Fprintf(cmd.OutOrStdout(), "  bonus:  %d XP\n", c.XPBonus)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
