package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/zaggino/brackets-flow/internal/model"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
flow:
  binary: /opt/flow/bin/flow
  timeout: 1500ms
  kill_on_timeout: false
  env:
    FLOW_NUM_WORKERS: "2"
service:
  verbose: true
  log: /var/log/brackets-flow.log
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.NotNil(t, cfg.Flow.Binary)
	require.Equal(t, "/opt/flow/bin/flow", *cfg.Flow.Binary)
	require.Equal(t, model.DefaultConfigFile, cfg.Flow.ConfigFile)
	require.Equal(t, model.DefaultArgs, cfg.Flow.Args)
	require.Equal(t, map[string]string{"FLOW_NUM_WORKERS": "2"}, cfg.Flow.Env)
	require.False(t, cfg.Flow.KillOnTimeout)
	require.True(t, cfg.Service.Verbose)
	require.Equal(t, "/var/log/brackets-flow.log", cfg.Service.Log)

	d, err := cfg.Flow.TimeoutDuration()
	require.NoError(t, err)
	require.Equal(t, 1500*time.Millisecond, d)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := model.LoadConfig(strings.NewReader("version: 0\n"))
	require.NoError(t, err)
	require.Equal(t, model.DefaultConfig(), cfg)

	d, err := cfg.Flow.TimeoutDuration()
	require.NoError(t, err)
	require.Equal(t, model.DefaultTimeout, d)
}

func TestLoadConfig_Fail(t *testing.T) {
	var testCases = []struct {
		scenario string
		given    string
	}{
		{"bad timeout", "version: 0\nflow:\n  timeout: soon\n"},
		{"empty binary", "version: 0\nflow:\n  binary: \"\"\n"},
		{"unknown log", "version: 0\nservice:\n  log: syslog\n"},
		{"wrong version", "version: 1\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			_, err := model.LoadConfig(strings.NewReader(tc.given))
			require.Error(t, err)
			details := model.ConfigErrors(err)
			require.NotEmpty(t, details)
			for _, d := range details {
				require.NotEmpty(t, d.Message)
				require.NotEmpty(t, d.Code)
			}
		})
	}
}

func TestTimeoutDuration(t *testing.T) {
	var testCases = []struct {
		scenario string
		given    string
		then     time.Duration
		err      bool
	}{
		{"empty", "", model.DefaultTimeout, false},
		{"millis", "250ms", 250 * time.Millisecond, false},
		{"seconds", "10s", 10 * time.Second, false},
		{"zero", "0s", 0, true},
		{"garbage", "three seconds", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			d, err := model.Flow{Timeout: tc.given}.TimeoutDuration()
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.then, d)
		})
	}
}
