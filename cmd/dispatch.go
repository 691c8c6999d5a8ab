package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vpp/app"
	"github.com/kilianp07/vpp/app/plugins"
	"github.com/kilianp07/vpp/core/dispatch"
	"github.com/kilianp07/vpp/core/registry"
	"github.com/kilianp07/vpp/infra/logger"
	"github.com/kilianp07/vpp/pkg/export"
)

var (
	demandKW       float64
	dispatchFormat string
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Dispatch a demand over the configured seed plants and print the allocation",
	RunE:  runDispatch,
}

func init() {
	dispatchCmd.Flags().Float64VarP(&demandKW, "demand", "d", 0, "demand to cover in kW")
	dispatchCmd.Flags().StringVarP(&dispatchFormat, "format", "f", "table", "output format: table, json or csv")
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	switch dispatchFormat {
	case "table", "json", "csv":
	default:
		return fmt.Errorf("unknown format %q", dispatchFormat)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg := registry.New(registry.WithLogger(logger.New("registry")))
	if err := app.Seed(reg, cfg.Registry.Seed); err != nil {
		return err
	}
	d, err := plugins.NewDispatcher(cfg.Dispatch.Algorithm, nil)
	if err != nil {
		return err
	}
	engine, err := dispatch.NewEngine(reg, d, nil, logger.New("dispatch-command"))
	if err != nil {
		return err
	}
	res, err := engine.Dispatch(context.Background(), demandKW)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch dispatchFormat {
	case "json":
		return export.WriteJSON(out, res)
	case "csv":
		return export.WriteCSV(out, res, reg.List())
	}
	return export.WriteTable(out, res, reg.List())
}
