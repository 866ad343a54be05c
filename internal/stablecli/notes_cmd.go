// notes_cmd.go implements daily-notes show and alert.
package stablecli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hoofbeat/stableops/stabletypes"
	"github.com/spf13/cobra"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Show the daily notes of a stable.",
	RunE:  runNotesShow,
}

var notesAlertCmd = &cobra.Command{
	Use:   "alert <message>",
	Short: "Add a stable-wide alert to today's notes.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNotesAlert,
}

func init() {
	notesCmd.PersistentFlags().String("date", "", "Day to operate on (YYYY-MM-DD, default today)")
	notesAlertCmd.Flags().String("priority", string(stabletypes.PriorityNormal), "Alert priority (LOW, NORMAL, HIGH, URGENT)")
	notesCmd.AddCommand(notesAlertCmd)
}

func notesDate(cmd *cobra.Command) string {
	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		return time.Now().UTC().Format("2006-01-02")
	}
	return date
}

func runNotesShow(cmd *cobra.Command, _ []string) error {
	ctx, cancel, cfg, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	if err := requireStable(cfg); err != nil {
		return err
	}

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	notes, err := svc.Notes.Get(ctx, cfg.StableID, notesDate(cmd))
	if err != nil {
		return err
	}
	printNotes(notes)
	return nil
}

func runNotesAlert(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	if err := requireStable(cfg); err != nil {
		return err
	}

	priorityStr, _ := cmd.Flags().GetString("priority")
	priority := stabletypes.NotePriority(strings.ToUpper(priorityStr))

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	date := notesDate(cmd)
	notes, err := svc.Notes.Get(ctx, cfg.StableID, date)
	if err != nil {
		return err
	}
	notes.StableID = cfg.StableID
	notes.Date = date
	notes.Alerts = append(notes.Alerts, stabletypes.StableAlert{
		ID:       uuid.NewString(),
		Message:  strings.Join(args, " "),
		Priority: priority,
	})
	if err := svc.Notes.Set(ctx, notes); err != nil {
		return err
	}
	fmt.Printf("Alert recorded for %s\n", date)
	return nil
}

func printNotes(notes *stabletypes.DailyNotes) {
	if !notes.HasEntries() && notes.GeneralNotes == "" && notes.WeatherNotes == "" {
		fmt.Println("No notes for the day.")
		return
	}
	if notes.GeneralNotes != "" {
		fmt.Printf("General: %s\n", notes.GeneralNotes)
	}
	if notes.WeatherNotes != "" {
		fmt.Printf("Weather: %s\n", notes.WeatherNotes)
	}
	for _, alert := range notes.Alerts {
		fmt.Printf("[%s] %s\n", alert.Priority, alert.Message)
	}
	for _, note := range notes.HorseNotes {
		fmt.Printf("[%s] horse %s: %s\n", note.Priority, note.HorseID, note.Text)
	}
}
