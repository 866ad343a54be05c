// horses_cmd.go implements roster management.
package stablecli

import (
	"fmt"
	"strings"

	"github.com/hoofbeat/stableops/stabletypes"
	"github.com/spf13/cobra"
)

var horsesCmd = &cobra.Command{
	Use:   "horses",
	Short: "List the active roster of a stable.",
	RunE:  runHorsesList,
}

var horsesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a horse to the stable roster.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHorsesAdd,
}

func init() {
	horsesAddCmd.Flags().String("group", "", "Horse group ID")
	horsesAddCmd.Flags().String("location", "", "Location ID")
	horsesCmd.AddCommand(horsesAddCmd)
}

func requireStable(cfg Config) error {
	if cfg.StableID == "" {
		return fmt.Errorf("no stable selected: pass --stable or set stable_id in .stableops/config.yaml")
	}
	return nil
}

func runHorsesList(cmd *cobra.Command, _ []string) error {
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

	horses, err := svc.Horses.ListForStable(ctx, cfg.StableID)
	if err != nil {
		return err
	}
	if len(horses) == 0 {
		fmt.Println("No horses.")
		return nil
	}
	for _, horse := range horses {
		group := horse.HorseGroupID
		if group == "" {
			group = "-"
		}
		fmt.Printf("%s  %-20s  group=%s\n", horse.ID, horse.Name, group)
	}
	return nil
}

func runHorsesAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	if err := requireStable(cfg); err != nil {
		return err
	}

	group, _ := cmd.Flags().GetString("group")
	location, _ := cmd.Flags().GetString("location")

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	horse := &stabletypes.Horse{
		StableID:     cfg.StableID,
		Name:         strings.Join(args, " "),
		HorseGroupID: group,
		LocationID:   location,
		IsActive:     true,
	}
	if err := svc.Horses.Create(ctx, horse); err != nil {
		return err
	}
	fmt.Printf("Added %s (%s)\n", horse.Name, horse.ID)
	return nil
}
