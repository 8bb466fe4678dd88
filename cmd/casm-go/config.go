package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/prisms-center/casm-go/pkg/casm"
	"github.com/prisms-center/casm-go/pkg/casm/logging"
)

// fileConfig is the YAML configuration file layout.
type fileConfig struct {
	Executable     string `yaml:"executable"`
	EngineLibrary  string `yaml:"engine_library"`
	BindingLibrary string `yaml:"binding_library"`
	Log            struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path) // #nosec G304 -- path supplied by the operator
	if err != nil {
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

type globalOptions struct {
	configFile     string
	executable     string
	engineLibrary  string
	bindingLibrary string
	logLevel       string
	logFormat      string
}

func (o *globalOptions) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.configFile, "config", "", "YAML configuration file")
	f.StringVar(&o.executable, "executable", "casm", "casm executable used to locate the libraries")
	f.StringVar(&o.engineLibrary, "engine-lib", "", "path to libcasm, skips dependency introspection")
	f.StringVar(&o.bindingLibrary, "binding-lib", "", "path to libccasm, derived from --engine-lib when empty")
	f.StringVar(&o.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	f.StringVar(&o.logFormat, "log-format", "console", "log format (console, json)")
}

// merge applies the config file, then any flag set explicitly on cmd.
func (o *globalOptions) merge(cmd *cobra.Command) (globalOptions, error) {
	out := *o
	if o.configFile == "" {
		return out, nil
	}
	fc, err := loadFileConfig(o.configFile)
	if err != nil {
		return out, err
	}
	flags := cmd.Flags()
	apply := func(name string, dst *string, v string) {
		if v != "" && !flags.Changed(name) {
			*dst = v
		}
	}
	apply("executable", &out.executable, fc.Executable)
	apply("engine-lib", &out.engineLibrary, fc.EngineLibrary)
	apply("binding-lib", &out.bindingLibrary, fc.BindingLibrary)
	apply("log-level", &out.logLevel, fc.Log.Level)
	apply("log-format", &out.logFormat, fc.Log.Format)
	return out, nil
}

func (o *globalOptions) config(cmd *cobra.Command) (casm.Config, error) {
	m, err := o.merge(cmd)
	if err != nil {
		return casm.Config{}, err
	}
	zl, err := newZapLogger(m.logLevel, m.logFormat)
	if err != nil {
		return casm.Config{}, err
	}
	return casm.Config{
		Executable:     m.executable,
		EngineLibrary:  m.engineLibrary,
		BindingLibrary: m.bindingLibrary,
		Logger:         logging.NewZap(zl),
	}, nil
}

func newZapLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	var zc zap.Config
	switch format {
	case "json":
		zc = zap.NewProductionConfig()
	case "console", "":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
