package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skillmesh/skillmesh/pkg/config"
	"github.com/skillmesh/skillmesh/pkg/manager"
	"github.com/skillmesh/skillmesh/pkg/presenter"
	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Inspect and invoke skills from the command line",
	Long:  `List, show, invoke and refresh skills without starting a server.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all resolved skills",
	Long:  `List every skill in the resolved registry with its source and description.`,
	Run: func(cmd *cobra.Command, _ []string) {
		filter, _ := cmd.Flags().GetString("filter")
		source, _ := cmd.Flags().GetString("source")
		listResolvedSkills(cmd, filter, source)
	},
}

var skillShowCmd = &cobra.Command{
	Use:   "show <skill-id>",
	Short: "Show the full documentation of a skill",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		showSkill(cmd, args[0])
	},
}

var skillInvokeCmd = &cobra.Command{
	Use:   "invoke <skill-id>",
	Short: "Invoke a skill with parameters",
	Long: `Invoke a skill, substituting parameter values into its content.
Parameters are passed as repeated --param name=value flags or as a single
--json object.

Examples:
  skillmesh skill invoke deploy-checklist --param service=api --param env=staging
  skillmesh skill invoke deploy-checklist --json '{"service": "api"}'`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		invokeSkill(cmd, args[0])
	},
}

var skillRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Sync the skill repository and re-ingest all sources",
	Run: func(cmd *cobra.Command, _ []string) {
		refreshSkills(cmd)
	},
}

func init() {
	skillListCmd.Flags().String("filter", "", "Substring filter on name, description or id")
	skillListCmd.Flags().String("source", "", "Restrict to one source kind (repository, local)")
	skillInvokeCmd.Flags().StringArray("param", nil, "Parameter as name=value (repeatable)")
	skillInvokeCmd.Flags().String("json", "", "Parameters as a JSON object")

	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillShowCmd)
	skillCmd.AddCommand(skillInvokeCmd)
	skillCmd.AddCommand(skillRefreshCmd)
}

// bootstrappedManager assembles and bootstraps the engine for one-shot CLI
// use. Callers must run the returned cleanup.
func bootstrappedManager(cmd *cobra.Command) (*manager.Manager, func()) {
	ctx := cmd.Context()

	cfg, err := config.FromViper()
	if err != nil {
		presenter.Error(err, "failed to load configuration")
		os.Exit(1)
	}

	mgr, cleanup, err := buildManager(ctx, cfg)
	if err != nil {
		presenter.Error(err, "failed to assemble skill engine")
		os.Exit(1)
	}

	if err := mgr.Bootstrap(ctx); err != nil {
		cleanup()
		presenter.Error(err, "failed to bootstrap skill registry")
		os.Exit(1)
	}
	return mgr, cleanup
}

func listResolvedSkills(cmd *cobra.Command, filter, source string) {
	mgr, cleanup := bootstrappedManager(cmd)
	defer cleanup()

	result := mgr.ListSkills(cmd.Context(), filter, skilltypes.SourceKind(source))
	if result.Total == 0 {
		presenter.Info("No skills found")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSOURCE\tDESCRIPTION")
	fmt.Fprintln(tw, "--\t----\t------\t-----------")

	for _, skill := range result.Skills {
		description := skill.Description
		if len(description) > 60 {
			description = description[:57] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", skill.ID, skill.Name, skill.Source, description)
	}
	tw.Flush()
}

func showSkill(cmd *cobra.Command, id string) {
	mgr, cleanup := bootstrappedManager(cmd)
	defer cleanup()

	content, err := mgr.GetSkillDocumentation(cmd.Context(), id)
	if err != nil {
		presenter.Error(err, fmt.Sprintf("failed to load skill %q", id))
		os.Exit(1)
	}
	fmt.Println(content)
}

func invokeSkill(cmd *cobra.Command, id string) {
	values, err := parameterValues(cmd)
	if err != nil {
		presenter.Error(err, "invalid parameters")
		os.Exit(1)
	}

	mgr, cleanup := bootstrappedManager(cmd)
	defer cleanup()

	result := mgr.InvokeSkill(cmd.Context(), id, values)
	if !result.Success {
		presenter.Error(result.Error, fmt.Sprintf("failed to invoke skill %q", id))
		for _, violation := range result.Error.Violations {
			presenter.Info("  - " + violation)
		}
		os.Exit(1)
	}
	fmt.Println(result.Content)
}

func refreshSkills(cmd *cobra.Command) {
	mgr, cleanup := bootstrappedManager(cmd)
	defer cleanup()

	result := mgr.RefreshSkills(cmd.Context())
	if !result.Success {
		presenter.Error(fmt.Errorf("%s", result.Message), "refresh failed")
		os.Exit(1)
	}
	presenter.Success(result.Message)
}

// parameterValues merges --json and repeated --param flags, --param winning
// on conflicts
func parameterValues(cmd *cobra.Command) (map[string]any, error) {
	values := map[string]any{}

	if raw, _ := cmd.Flags().GetString("json"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return nil, fmt.Errorf("invalid --json value: %w", err)
		}
	}

	params, _ := cmd.Flags().GetStringArray("param")
	for _, param := range params {
		name, value, ok := strings.Cut(param, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --param %q, expected name=value", param)
		}
		values[name] = value
	}

	return values, nil
}
