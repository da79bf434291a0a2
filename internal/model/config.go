package model

import (
	"fmt"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"

	DefaultConfigFile = ".flowconfig"
	DefaultTimeout    = 3 * time.Second
)

// DefaultArgs makes flow print every error as json.
var DefaultArgs = []string{"--show-all-errors", "--json"}

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
}

type Config struct {
	Version int     `json:"version" yaml:"version"` // fixed 0 for now
	Flow    Flow    `json:"flow" yaml:"flow"`
	Service Service `json:"service" yaml:"service"`
}

// Flow configures how the flow binary is located and executed.
type Flow struct {
	Binary        *string           `json:"binary,omitempty" yaml:"binary,omitempty"` // nil => node_modules/.bin/flow or $PATH
	ConfigFile    string            `json:"config_file" yaml:"config_file"`
	Args          []string          `json:"args" yaml:"args"`
	Env           map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Timeout       string            `json:"timeout" yaml:"timeout"` // time.ParseDuration format
	KillOnTimeout bool              `json:"kill_on_timeout" yaml:"kill_on_timeout"`
}

type Service struct {
	Verbose bool   `json:"verbose" yaml:"verbose"`
	Log     string `json:"log" yaml:"log"` // "stderr"|"stdout"|"discard"|path
}

func DefaultConfig() Config {
	return Config{
		Flow: Flow{
			ConfigFile:    DefaultConfigFile,
			Args:          append([]string(nil), DefaultArgs...),
			Timeout:       DefaultTimeout.String(),
			KillOnTimeout: true,
		},
		Service: Service{
			Log: LogStderr,
		},
	}
}

// TimeoutDuration parses Timeout, an empty value means DefaultTimeout.
func (f Flow) TimeoutDuration() (time.Duration, error) {
	if f.Timeout == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing flow.timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("flow.timeout must be positive, got %s", d)
	}
	return d, nil
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	return out, nil
}
