package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reshelve/internal/migration"
	"reshelve/internal/report"
)

// planFlags are shared by plan and migrate.
type planFlags struct {
	kind      string
	excludes  []string
	overrides []string
	json      bool
}

func (f *planFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.kind, "kind", "k", "", "Migration kind: "+kindNames())
	cmd.Flags().StringArrayVar(&f.excludes, "exclude", nil, "Album id or folder name to leave untouched (repeatable)")
	cmd.Flags().StringArrayVar(&f.overrides, "override", nil, "Force an album's category as ALBUM=CATEGORY (repeatable)")
	cmd.Flags().BoolVar(&f.json, "json", false, "Output JSON")
}

func (f *planFlags) request(artistID string) (migration.PlanRequest, error) {
	kind, err := migration.ParseKind(f.kind)
	if err != nil {
		return migration.PlanRequest{}, err
	}
	overrides, err := parseOverrides(f.overrides)
	if err != nil {
		return migration.PlanRequest{}, err
	}
	return migration.PlanRequest{
		ArtistID:  artistID,
		Kind:      kind,
		Overrides: overrides,
		Excludes:  f.excludes,
	}, nil
}

func kindNames() string {
	names := make([]string, 0, len(migration.Kinds()))
	for _, kind := range migration.Kinds() {
		names = append(names, string(kind))
	}
	return strings.Join(names, ", ")
}

// parseOverrides splits ALBUM=CATEGORY on the last '=' so album names may
// contain one.
func parseOverrides(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, value := range values {
		idx := strings.LastIndex(value, "=")
		if idx <= 0 || idx == len(value)-1 {
			return nil, fmt.Errorf("invalid override %q: expected ALBUM=CATEGORY", value)
		}
		out[strings.TrimSpace(value[:idx])] = strings.TrimSpace(value[idx+1:])
	}
	return out, nil
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var flags planFlags
	cmd := &cobra.Command{
		Use:   "plan <artist>",
		Short: "Show the operations a migration would perform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args[0])
			if err != nil {
				return err
			}
			return ctx.withBackend(cmd, func(b backend) error {
				plan, err := b.Plan(req)
				if err != nil {
					return err
				}
				if flags.json {
					return writeJSON(cmd, plan)
				}
				out := cmd.OutOrStdout()
				return report.WritePlan(out, plan, report.Options{Color: report.ShouldColorize(out)})
			})
		},
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}
