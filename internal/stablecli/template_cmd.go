// template_cmd.go implements template apply/list/show.
package stablecli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage routine templates.",
}

var templateApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create or update routine templates from YAML files.",
	Long: `Read one or more template YAML files and create them, or update them
when the file carries an id. Templates already referenced by a scheduled
instance are immutable and the update is rejected.`,
	RunE: runTemplateApply,
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List routine templates for a stable.",
	RunE:  runTemplateList,
}

func init() {
	templateApplyCmd.Flags().StringSliceP("file", "f", nil, "Template YAML file (repeatable)")
	_ = templateApplyCmd.MarkFlagRequired("file")
	templateCmd.AddCommand(templateApplyCmd, templateListCmd)
}

func runTemplateApply(cmd *cobra.Command, _ []string) error {
	ctx, cancel, cfg, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	files, _ := cmd.Flags().GetStringSlice("file")
	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	for _, path := range files {
		template, err := loadTemplateFile(path, cfg.StableID)
		if err != nil {
			return err
		}
		if template.ID != "" {
			if err := svc.Routine.UpdateTemplate(ctx, template); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("Updated %s (%s)\n", template.Name, template.ID)
			continue
		}
		if err := svc.Routine.CreateTemplate(ctx, template); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("Created %s (%s)\n", template.Name, template.ID)
	}
	return nil
}

func runTemplateList(cmd *cobra.Command, _ []string) error {
	ctx, cancel, cfg, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if cfg.StableID == "" {
		return fmt.Errorf("no stable selected: pass --stable or set stable_id in .stableops/config.yaml")
	}

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	templates, err := svc.Routine.ListTemplates(ctx, cfg.StableID, nil, 100)
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		fmt.Println("No templates.")
		return nil
	}
	for _, template := range templates {
		fmt.Printf("%s  %-30s  %d steps  points=%d\n", template.ID, template.Name, len(template.Steps), template.Points)
	}
	return nil
}
