// instance_cmd.go implements schedule and instances list.
package stablecli

import (
	"fmt"
	"time"

	"github.com/hoofbeat/stableops/routineservice"
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <template-id>",
	Short: "Schedule a dated instance of a routine template.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedule,
}

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List routine instances for a stable, optionally for one day.",
	RunE:  runInstances,
}

func init() {
	scheduleCmd.Flags().String("at", "", "Scheduled time (RFC3339 or YYYY-MM-DDTHH:MM, default now)")
	scheduleCmd.Flags().String("assign", "", "Who the instance is assigned to")
	instancesCmd.Flags().String("date", "", "Day filter (YYYY-MM-DD)")
}

func parseScheduleTime(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (want RFC3339 or YYYY-MM-DDTHH:MM)", value)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	atStr, _ := cmd.Flags().GetString("at")
	scheduledAt, err := parseScheduleTime(atStr)
	if err != nil {
		return err
	}
	assign, _ := cmd.Flags().GetString("assign")

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	req := &routineservice.ScheduleRequest{
		TemplateID:  args[0],
		ScheduledAt: scheduledAt,
		AssignedTo:  assign,
	}
	if assign != "" {
		req.AssignmentType = "caretaker"
	}
	instance, err := svc.Routine.Schedule(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Scheduled %s (%s) for %s\n", instance.TemplateName, instance.ID, instance.ScheduledAt.Format(time.RFC3339))
	return nil
}

func runInstances(cmd *cobra.Command, _ []string) error {
	ctx, cancel, cfg, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if cfg.StableID == "" {
		return fmt.Errorf("no stable selected: pass --stable or set stable_id in .stableops/config.yaml")
	}

	var date *time.Time
	if dateStr, _ := cmd.Flags().GetString("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return fmt.Errorf("cannot parse date %q: %w", dateStr, err)
		}
		date = &parsed
	}

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	instances, err := svc.Routine.ListInstances(ctx, cfg.StableID, date, 100)
	if err != nil {
		return err
	}
	if len(instances) == 0 {
		fmt.Println("No instances.")
		return nil
	}
	for _, instance := range instances {
		fmt.Printf("%s  %-30s  %-11s  %s  %3d%%\n",
			instance.ID,
			instance.TemplateName,
			instance.Status,
			instance.ScheduledAt.Format("2006-01-02 15:04"),
			instance.Progress.PercentComplete,
		)
	}
	return nil
}
