package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zaggino/brackets-flow/internal/log"
	"github.com/zaggino/brackets-flow/internal/model"
)

const configName = "brackets-flow.yaml"

var (
	userConfigPath string // /default/config/path/brackets-flow on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config
	logOutput      io.Closer

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagProject        string // value of check --project flag
	flagJobs           int    // value of check --jobs flag

	// overrides from check flags and BRACKETS_FLOW_* environment variables
	overrides *viper.Viper
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "brackets-flow")

	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is "+configName+" in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	checkCmd.Flags().StringVar(&flagProject, "project", "", "Project root, default is the nearest parent directory of each file with a flow config")
	checkCmd.Flags().IntVar(&flagJobs, "jobs", 0, "How many files are checked at once, 0 means all")
	checkCmd.Flags().Duration("timeout", 0, "Flow timeout, overrides flow.timeout from the config")
	overrides, err = newOverrides(checkCmd.Flags())
	if err != nil {
		panic(err)
	}
}

// newOverrides binds the flags which take a precedence over the config file.
// Each of them can be set by a BRACKETS_FLOW_<NAME> environment variable too.
func newOverrides(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("BRACKETS_FLOW")
	v.AutomaticEnv()
	if err := v.BindPFlag("timeout", flags.Lookup("timeout")); err != nil {
		return nil, err
	}
	return v, nil
}

// effectiveFlow applies overrides on top of flow from the config file.
func effectiveFlow(flow model.Flow, v *viper.Viper) model.Flow {
	if v.IsSet("timeout") {
		if d := v.GetDuration("timeout"); d > 0 {
			flow.Timeout = d.String()
		}
	}
	return flow
}

func main() {
	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initBracketsFlow
	rootCmd.PersistentPostRun = func(*cobra.Command, []string) {
		if logOutput != nil {
			_ = logOutput.Close()
		}
	}

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("brackets-flow failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "brackets-flow",
	Short:        "Flow type checker diagnostics for editors",
	SilenceUsage: true,
}

var checkCmd = &cobra.Command{
	Use:   "check [FILE...]",
	Short: "check runs flow for the projects of given files and prints their diagnostics as json lines",
	Long:  "check runs flow for the projects of given files and prints their diagnostics as json lines. Without files all sources of --project are checked.",
	Args:  checkArgs,
	RunE:  doCheck,
}

func checkArgs(_ *cobra.Command, args []string) error {
	if len(args) == 0 && flagProject == "" {
		return errors.New("requires at least one file or --project")
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a brackets-flow",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("brackets-flow: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config: %s\n", configPath)
		}
		fmt.Printf("brackets-flow: %s\n", info.Main.Version)
		fmt.Printf("go:            %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:        %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:          %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:         %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func initBracketsFlow(cmd *cobra.Command, _ []string) error {
	// log config problems the same way as the rest, until the config says where
	slog.SetDefault(log.New(os.Stderr, flagVerbose))

	if envConfig, ok := os.LookupEnv("BRACKETSFLOWCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, configName)
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		config = model.DefaultConfig()
		configPath = filepath.Join(userConfigPath, configName)
		if err := storeConfig(configPath, config); err != nil {
			return err
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.ConfigErrors(err) {
				slog.Error("invalid config", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	// --verbose has a precedence over config file
	if flagVerbose {
		config.Service.Verbose = true
	}

	// initialize logging
	w, err := log.Output(config.Service.Log)
	if err != nil {
		return err
	}
	logOutput = w
	slog.SetDefault(log.New(w, config.Service.Verbose))

	slog.Debug("brackets-flow run", "configPath", configPath)
	slog.Debug("brackets-flow run", "config", config)
	return nil
}

func storeConfig(path string, cfg model.Config) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	err = enc.Encode(cfg)
	if err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return enc.Close()
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
