package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/iot-simulator/cmd"
)

// flags mirror the environment read by config.Load; a set flag wins over its env var.
func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "mqtt-host",
			EnvVars: []string{"MQTT_HOST"},
			Usage:   "broker url, e.g. tcp://localhost:1883",
		},
		&cli.StringFlag{
			Name:    "namespace",
			EnvVars: []string{"TOPIC_NAMESPACE"},
			Usage:   "topic namespace shared with the dashboard",
		},
		&cli.StringFlag{
			Name:    "devices-file",
			EnvVars: []string{"DEVICES_FILE"},
			Usage:   "YAML device list, defaults to the built-in fleet",
		},
		&cli.DurationFlag{
			Name:    "round-interval",
			EnvVars: []string{"ROUND_INTERVAL"},
			Usage:   "pause between rounds",
		},
		&cli.DurationFlag{
			Name:    "device-interval",
			EnvVars: []string{"DEVICE_INTERVAL"},
			Usage:   "pause between devices within a round",
		},
		&cli.IntFlag{
			Name:    "status-every",
			EnvVars: []string{"STATUS_EVERY"},
			Usage:   "publish status every Nth round, 0 disables",
		},
		&cli.StringFlag{
			Name:    "log-level",
			EnvVars: []string{"LOG_LEVEL"},
			Usage:   "log level",
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:   "iot-simulator",
		Usage:  "publishes synthetic IoT telemetry to an MQTT broker",
		Action: cmd.SimulatorCommand,
		Flags:  flags(),
		Commands: []*cli.Command{
			{
				Name:   "devices",
				Usage:  "list the simulated devices to register in the dashboard",
				Action: cmd.DevicesCommand,
				Flags:  flags(),
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
