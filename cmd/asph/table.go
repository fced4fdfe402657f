package main

import (
	"fmt"

	"github.com/notargets/asph/calibration"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type tableSample struct {
	NPerH float64 `yaml:"n_per_h"`
	Sum   float64 `yaml:"sum"`
}

type tableDump struct {
	Kernel     string        `yaml:"kernel"`
	MaxDensity float64       `yaml:"max_density"`
	Size       int           `yaml:"size"`
	SumBounds  [2]float64    `yaml:"sum_bounds,flow"`
	Samples    []tableSample `yaml:"samples"`
}

func newTableCmd(a *app) *cobra.Command {
	var every int
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Build the calibration table and write it as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if every < 1 {
				return fmt.Errorf("--every must be positive, have %d", every)
			}
			k, err := a.cfg.NewKernel()
			if err != nil {
				return err
			}
			defer k.Release()

			tb, err := calibration.New(k, a.cfg.Solver.MaxDensity, a.cfg.Solver.TableSize)
			if err != nil {
				return err
			}
			lo, hi := tb.SumBounds()
			dump := tableDump{
				Kernel:     tb.KernelName(),
				MaxDensity: a.cfg.Solver.MaxDensity,
				Size:       tb.Len(),
				SumBounds:  [2]float64{lo, hi},
			}
			densities, sums := tb.Samples()
			for i := 0; i < len(densities); i += every {
				dump.Samples = append(dump.Samples, tableSample{NPerH: densities[i], Sum: sums[i]})
			}
			a.logger.Info("calibration table built", "kernel", dump.Kernel, "size", dump.Size,
				"sum_max", hi, "written", len(dump.Samples))

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err = enc.Encode(dump); err != nil {
				return fmt.Errorf("encoding calibration table: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().IntVar(&every, "every", 1, "write every n-th sample")
	cmd.Flags().Float64("max-density", calibration.DefaultMaxDensity, "upper end of the calibrated n_per_h range")
	cmd.Flags().Int("size", calibration.DefaultSize, "number of calibration samples")
	return cmd
}
