package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"blueprint-backend/services"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Fetch the device inventory and check it against the boundary",
	Long: `Fetch the device list from the configured platform API and print each
device with its canvas position and whether it lies inside the configured
boundary.`,
	RunE: runDevices,
}

func runDevices(cmd *cobra.Command, args []string) error {
	loader := services.NewDeviceLoader(loaderOptions(cfg), logger)
	devices, err := loader.Fetch()
	if err != nil {
		return err
	}

	store := services.NewSpatialStore(storeOptions(cfg), logger)
	if err := store.SetDevices(devices); err != nil {
		return err
	}
	scene := store.Snapshot()
	report := services.NewEvaluator().Evaluate(scene)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tWORLD\tCANVAS\tINSIDE")
	for i, r := range report.Results {
		d := scene.Devices[i]
		fmt.Fprintf(w, "%s\t%s\t(%.2f, %.2f)\t(%.0f, %.0f)\t%v\n",
			r.DeviceID, r.Type, d.X, d.Y, r.Canvas.X, r.Canvas.Y, r.Inside)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d devices, %d outside boundary (%.0f, %.0f, %.0f x %.0f)\n",
		len(report.Results), report.Outside,
		report.Boundary.X, report.Boundary.Y, report.Boundary.Width, report.Boundary.Height)
	return nil
}
