package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newKernelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kernel",
		Short: "Print kernel properties and normalization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := a.cfg.NewKernel()
			if err != nil {
				return err
			}
			defer k.Release()

			props := k.GetProperties()
			W0, _ := k.Profile(0, 1)
			nh := a.cfg.Solver.NPerH
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "=== Kernel %s ===\n", props.Name)
			fmt.Fprintf(out, "Extent: %g\n", props.Extent)
			fmt.Fprintf(out, "W(0): %.10f\n", W0)
			fmt.Fprintf(out, "Volume integral: %.10f\n", k.VolumeIntegral())
			fmt.Fprintf(out, "Neighborhood sum at n_per_h=%g: %.10f\n", nh, k.NeighborhoodSum(nh))
			return nil
		},
	}
}
