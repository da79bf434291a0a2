package service

import (
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/zaggino/brackets-flow/internal/model"
)

type Config struct {
	Args          []string
	Env           map[string]string
	Timeout       time.Duration
	KillOnTimeout bool
}

func NewConfig(flow model.Flow) (Config, error) {
	timeout, err := flow.TimeoutDuration()
	if err != nil {
		return Config{}, err
	}
	args := flow.Args
	if args == nil {
		args = model.DefaultArgs
	}
	return Config{
		Args:          append([]string(nil), args...),
		Env:           flow.Env,
		Timeout:       timeout,
		KillOnTimeout: flow.KillOnTimeout,
	}, nil
}

// Cmd returns the command checking the project in dir with binary.
// Values starting with $ are expanded from the environment.
func (c Config) Cmd(binary, dir string) Command {
	var env []string
	if len(c.Env) > 0 {
		env = make([]string, 0, len(c.Env))
		for _, k := range slices.Sorted(maps.Keys(c.Env)) {
			v := c.Env[k]
			if strings.HasPrefix(v, "$") {
				v = os.ExpandEnv(v)
			}
			env = append(env, k+"="+v)
		}
	}
	return Command{
		Path: binary,
		Args: append([]string(nil), c.Args...),
		Dir:  dir,
		Env:  env,
	}
}
