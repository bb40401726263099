package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestFlags_HaveEnvVars(t *testing.T) {
	for _, f := range flags() {
		envs := f.(cli.DocGenerationFlag).GetEnvVars()
		assert.Len(t, envs, 1, f.Names()[0])
	}
}

func TestFlags_ReadFromEnvironment(t *testing.T) {
	t.Setenv("STATUS_EVERY", "7")
	t.Setenv("ROUND_INTERVAL", "3s")
	t.Setenv("TOPIC_NAMESPACE", "fleet")

	var statusEvery int
	var roundInterval time.Duration
	var namespace string
	var isSet bool
	app := newApp()
	app.Action = func(c *cli.Context) error {
		statusEvery = c.Int("status-every")
		roundInterval = c.Duration("round-interval")
		namespace = c.String("namespace")
		isSet = c.IsSet("status-every")
		return nil
	}

	require.NoError(t, app.Run([]string{"iot-simulator"}))
	assert.Equal(t, 7, statusEvery)
	assert.Equal(t, 3*time.Second, roundInterval)
	assert.Equal(t, "fleet", namespace)
	assert.True(t, isSet)
}

func TestFlags_CommandLineBeatsEnvironment(t *testing.T) {
	t.Setenv("STATUS_EVERY", "7")

	var statusEvery int
	app := newApp()
	app.Action = func(c *cli.Context) error {
		statusEvery = c.Int("status-every")
		return nil
	}

	require.NoError(t, app.Run([]string{"iot-simulator", "--status-every", "3"}))
	assert.Equal(t, 3, statusEvery)
}

func TestDevicesSubcommand_FileFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`devices:
  - serialNumber: "5550000002"
    name: Plant Room
    deviceType: smart meter
    parameters: [power, voltage]
`), 0o600))
	t.Setenv("DEVICES_FILE", path)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	require.NoError(t, app.Run([]string{"iot-simulator", "devices"}))
	assert.Contains(t, out.String(), "5550000002")
	assert.Contains(t, out.String(), "smart_meter")
}
