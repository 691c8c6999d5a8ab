package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vpp/app"
	"github.com/kilianp07/vpp/core/registry"
)

var plantsCmd = &cobra.Command{
	Use:   "plants",
	Short: "Plant registry commands",
}

var plantsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the configured seed plants and their aggregate capacity",
	RunE:  runPlantsLs,
}

func init() {
	plantsCmd.AddCommand(plantsLsCmd)
	rootCmd.AddCommand(plantsCmd)
}

func runPlantsLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg := registry.New()
	if err := app.Seed(reg, cfg.Registry.Seed); err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMAX_KW\tMIN_KW\tSTATUS")
	for _, p := range reg.List() {
		fmt.Fprintf(w, "%d\t%s\t%g\t%g\t%s\n", p.ID, p.Name, p.MaxCapacity, p.MinCapacity, p.Status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "total available: %g kW\n", reg.Aggregate())
	return err
}
