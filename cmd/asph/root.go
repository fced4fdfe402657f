package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/notargets/asph/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by all subcommands
type app struct {
	v          *viper.Viper
	configFile string
	logLevel   string
	logger     *slog.Logger
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "asph",
		Short: "Adaptive anisotropic smoothing tensors for SPH particles",
		Long: `asph calibrates SPH kernels against lattice neighbor sums and relaxes
per-particle smoothing tensors toward a target neighbor density.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().String("kernel", "b-spline", "kernel name")
	root.PersistentFlags().Bool("tabulate", false, "evaluate the kernel through a lookup table")
	root.PersistentFlags().String("interpolation", "linear", "table interpolation: linear, akima or fritsch-butland")
	root.PersistentFlags().Float64("n-per-h", 2.0, "target neighbors per smoothing length")
	root.PersistentFlags().Bool("anisotropic", false, "allow anisotropic tensors")
	root.PersistentFlags().Bool("blend-shape", false, "blend the anisotropic shape with the identity by confidence")

	root.AddCommand(newKernelCmd(a), newTableCmd(a), newRelaxCmd(a))
	return root
}

var rootFlagKeys = map[string]string{
	"kernel":        "kernel.name",
	"tabulate":      "kernel.tabulate",
	"interpolation": "kernel.interpolation",
	"n-per-h":       "solver.n_per_h",
	"anisotropic":   "solver.anisotropic",
	"blend-shape":   "solver.blend_shape",
}

// load resolves the configuration for the command being run: persistent
// flags apply to every subcommand, local flags only to their own
func (a *app) load(cmd *cobra.Command) error {
	level, err := parseLevel(a.logLevel)
	if err != nil {
		return err
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if err = config.BindFlags(a.v, cmd.Root().PersistentFlags(), rootFlagKeys); err != nil {
		return err
	}
	if keys, ok := localFlagKeys[cmd.Name()]; ok {
		if err = config.BindFlags(a.v, cmd.Flags(), keys); err != nil {
			return err
		}
	}
	if a.cfg, err = config.Load(a.v, a.configFile); err != nil {
		return err
	}
	a.logger.Debug("configuration loaded", "file", a.configFile, "kernel", a.cfg.Kernel.Name,
		"n_per_h", a.cfg.Solver.NPerH, "anisotropic", a.cfg.Solver.Anisotropic)
	return nil
}

var localFlagKeys = map[string]map[string]string{
	"relax": {
		"n":       "lattice.n",
		"spacing": "lattice.spacing",
		"jitter":  "lattice.jitter",
		"seed":    "lattice.seed",
		"steps":   "relax.steps",
		"workers": "relax.workers",
	},
	"table": {
		"max-density": "solver.max_density",
		"size":        "solver.table_size",
	},
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
