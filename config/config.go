package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notargets/asph/calibration"
	"github.com/notargets/asph/hupdate"
	"github.com/notargets/asph/kernel"
	"github.com/notargets/asph/lattice"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "ASPH"

type Config struct {
	Kernel  KernelConfig  `mapstructure:"kernel" yaml:"kernel"`
	Solver  SolverConfig  `mapstructure:"solver" yaml:"solver"`
	Lattice LatticeConfig `mapstructure:"lattice" yaml:"lattice"`
	Relax   RelaxConfig   `mapstructure:"relax" yaml:"relax"`
}

type KernelConfig struct {
	Name          string `mapstructure:"name" yaml:"name"`
	Tabulate      bool   `mapstructure:"tabulate" yaml:"tabulate"`
	Resolution    int    `mapstructure:"resolution" yaml:"resolution"`
	Interpolation string `mapstructure:"interpolation" yaml:"interpolation"`
}

type SolverConfig struct {
	NPerH                float64 `mapstructure:"n_per_h" yaml:"n_per_h"`
	Anisotropic          bool    `mapstructure:"anisotropic" yaml:"anisotropic"`
	BlendShape           bool    `mapstructure:"blend_shape" yaml:"blend_shape"`
	MaxDensity           float64 `mapstructure:"max_density" yaml:"max_density"`
	TableSize            int     `mapstructure:"table_size" yaml:"table_size"`
	MaxIterations        int     `mapstructure:"max_iterations" yaml:"max_iterations"`
	ConvergenceThreshold float64 `mapstructure:"convergence_threshold" yaml:"convergence_threshold"`
}

type LatticeConfig struct {
	N        int     `mapstructure:"n" yaml:"n"`
	Spacing  float64 `mapstructure:"spacing" yaml:"spacing"`
	Jitter   float64 `mapstructure:"jitter" yaml:"jitter"`
	Seed     uint64  `mapstructure:"seed" yaml:"seed"`
	InitialH float64 `mapstructure:"initial_h" yaml:"initial_h"`
	Margin   int     `mapstructure:"margin" yaml:"margin"`
}

type RelaxConfig struct {
	Steps   int `mapstructure:"steps" yaml:"steps"`
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// SetDefaults registers every key with its default value. Keys must be
// registered for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("kernel.name", "b-spline")
	v.SetDefault("kernel.tabulate", false)
	v.SetDefault("kernel.resolution", 1000)
	v.SetDefault("kernel.interpolation", kernel.Linear.String())

	v.SetDefault("solver.n_per_h", 2.0)
	v.SetDefault("solver.anisotropic", false)
	v.SetDefault("solver.blend_shape", false)
	v.SetDefault("solver.max_density", calibration.DefaultMaxDensity)
	v.SetDefault("solver.table_size", calibration.DefaultSize)
	v.SetDefault("solver.max_iterations", 100)
	v.SetDefault("solver.convergence_threshold", 0.05)

	v.SetDefault("lattice.n", 8)
	v.SetDefault("lattice.spacing", 1.0)
	v.SetDefault("lattice.jitter", 0.1)
	v.SetDefault("lattice.seed", 1)
	v.SetDefault("lattice.initial_h", 1.0)
	v.SetDefault("lattice.margin", 2)

	v.SetDefault("relax.steps", 10)
	v.SetDefault("relax.workers", 0)
}

// New returns a viper instance with defaults and environment overrides set
// up: solver.n_per_h is read from ASPH_SOLVER_N_PER_H.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds each named flag to its configuration key; flags that were
// set take precedence over the environment and the config file
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := fs.Lookup(flag)
		if f == nil {
			return fmt.Errorf("no flag named %q to bind to %s", flag, key)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %q: %w", flag, err)
		}
	}
	return nil
}

// Load reads the optional YAML file at path into v and decodes the result
func Load(v *viper.Viper, path string) (Config, error) {
	var cfg Config
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("error decoding configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every out-of-range setting at once
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(strings.EqualFold(c.Kernel.Name, "b-spline"), "kernel.name: unknown kernel %q", c.Kernel.Name)
	if c.Kernel.Tabulate {
		check(c.Kernel.Resolution > 1, "kernel.resolution must exceed 1, have %d", c.Kernel.Resolution)
		_, err := kernel.ParseInterpolation(c.Kernel.Interpolation)
		check(err == nil, "kernel.interpolation: %v", err)
	}

	check(c.Solver.NPerH > 0, "solver.n_per_h must be positive, have %g", c.Solver.NPerH)
	check(c.Solver.MaxDensity > 0, "solver.max_density must be positive, have %g", c.Solver.MaxDensity)
	check(c.Solver.NPerH < c.Solver.MaxDensity, "solver.n_per_h %g is outside the calibrated range [0, %g)",
		c.Solver.NPerH, c.Solver.MaxDensity)
	check(c.Solver.TableSize > 1, "solver.table_size must exceed 1, have %d", c.Solver.TableSize)
	check(c.Solver.MaxIterations > 0, "solver.max_iterations must be positive, have %d", c.Solver.MaxIterations)
	check(c.Solver.ConvergenceThreshold > 0, "solver.convergence_threshold must be positive, have %g",
		c.Solver.ConvergenceThreshold)

	check(c.Lattice.N > 0, "lattice.n must be positive, have %d", c.Lattice.N)
	check(c.Lattice.Spacing > 0, "lattice.spacing must be positive, have %g", c.Lattice.Spacing)
	check(c.Lattice.Jitter >= 0 && c.Lattice.Jitter < 1, "lattice.jitter must be in [0, 1), have %g", c.Lattice.Jitter)
	check(c.Lattice.InitialH > 0, "lattice.initial_h must be positive, have %g", c.Lattice.InitialH)
	check(c.Lattice.Margin >= 0, "lattice.margin must be non-negative, have %d", c.Lattice.Margin)

	check(c.Relax.Steps >= 0, "relax.steps must be non-negative, have %d", c.Relax.Steps)

	return errors.Join(errs...)
}

// NewKernel builds the configured kernel, tabulated if requested
func (c Config) NewKernel() (*kernel.Kernel, error) {
	if !strings.EqualFold(c.Kernel.Name, "b-spline") {
		return nil, fmt.Errorf("unknown kernel %q", c.Kernel.Name)
	}
	k := kernel.NewBSpline()
	if !c.Kernel.Tabulate {
		return k, nil
	}
	interpolation, err := kernel.ParseInterpolation(c.Kernel.Interpolation)
	if err != nil {
		return nil, err
	}
	return kernel.NewTabular(k, interpolation, c.Kernel.Resolution), nil
}

func (c Config) SolverConfig() hupdate.Config {
	return hupdate.Config{
		NPerH:                c.Solver.NPerH,
		Anisotropic:          c.Solver.Anisotropic,
		BlendShape:           c.Solver.BlendShape,
		MaxDensity:           c.Solver.MaxDensity,
		TableSize:            c.Solver.TableSize,
		MaxIterations:        c.Solver.MaxIterations,
		ConvergenceThreshold: c.Solver.ConvergenceThreshold,
	}
}

// NewSolver builds the configured kernel and its calibrated solver
func (c Config) NewSolver() (*hupdate.Solver, error) {
	k, err := c.NewKernel()
	if err != nil {
		return nil, err
	}
	s, err := hupdate.NewSolver(k, c.SolverConfig())
	if err != nil {
		k.Release()
		return nil, err
	}
	return s, nil
}

func (c Config) LatticeOptions() lattice.Options {
	return lattice.Options{
		N:        c.Lattice.N,
		Spacing:  c.Lattice.Spacing,
		Jitter:   c.Lattice.Jitter,
		Seed:     c.Lattice.Seed,
		InitialH: c.Lattice.InitialH,
		Margin:   c.Lattice.Margin,
	}
}
