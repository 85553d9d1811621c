package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/vaultcore/internal/flagx"
)

// parseFlags populates selected agent Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-n string   notification service base URL ("http://-" disables)
//	-w string   hub websocket endpoint
//	-r string   push broker address (host:port, empty disables push)
//	-f string   local state database path
//	-a string   app instance id
//	-i int      idle check interval, seconds
//	-x int      hub reconnect delay minimum, minutes
//	-y int      hub reconnect delay maximum, minutes
//	-m          multi-user notification streams
//	-l          keep streams for locked accounts
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers and converted to time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-n", "-w", "-r", "-f", "-a", "-i", "-x", "-y", "-m", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.NotificationsURL, "n", config.NotificationsURL, "notification service base URL")
	fs.StringVar(&config.HubURL, "w", config.HubURL, "hub websocket endpoint")
	fs.StringVar(&config.PushRedisAddr, "r", config.PushRedisAddr, "push broker address")
	fs.StringVar(&config.StatePath, "f", config.StatePath, "state database path")
	fs.StringVar(&config.AppID, "a", config.AppID, "app instance id")

	idleCheckInterval := fs.Int("i", int(config.IdleCheckInterval.Seconds()), "idle check interval (in seconds)")
	reconnectMin := fs.Int("x", int(config.ReconnectMin.Minutes()), "hub reconnect delay minimum (in minutes)")
	reconnectMax := fs.Int("y", int(config.ReconnectMax.Minutes()), "hub reconnect delay maximum (in minutes)")

	fs.BoolVar(&config.MultiUser, "m", config.MultiUser, "multi-user notification streams")
	fs.BoolVar(&config.PushWhileLocked, "l", config.PushWhileLocked, "keep streams for locked accounts")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.IdleCheckInterval = time.Duration(*idleCheckInterval) * time.Second
	config.ReconnectMin = time.Duration(*reconnectMin) * time.Minute
	config.ReconnectMax = time.Duration(*reconnectMax) * time.Minute
}
