package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyrite-audit/pyrite/internal/config"
	"github.com/pyrite-audit/pyrite/internal/detectors"
)

func newDetectorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detectors",
		Short: "Inspect the detector registry",
	}
	cmd.AddCommand(newDetectorsListCmd())
	return cmd
}

func newDetectorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered detectors in registration order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load(".")
			if err != nil {
				return err
			}
			reg := detectors.NewBuiltinRegistry()
			for _, id := range cfg.DisabledDetectors {
				if err := reg.Disable(id); err != nil {
					return err
				}
			}
			w := cmd.OutOrStdout()
			for _, d := range reg.All() {
				m := d.Meta()
				note := ""
				if !reg.Enabled(m.ID) {
					note = "\t(disabled by config)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\n", m.ID, m.Category, m.Severity, m.Title, note)
			}
			return nil
		},
	}
}
