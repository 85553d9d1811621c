// Package config handles configuration for the agent, including defaults,
// JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the vaultcore agent.
//
// Fields:
//   - NotificationsURL: base URL of the notification service. The sentinel
//     "http://-" disables server notifications entirely.
//   - HubURL: websocket endpoint of the fallback notification hub.
//   - PushRedisAddr: host:port of the push broker. Empty disables the push
//     transport; the hub is used instead.
//   - StatePath: path of the local account state database.
//   - AppID: identifier of this app instance, used to discard self-echoed
//     notifications. Generated at startup when empty.
//   - IdleCheckInterval: how often idle timeouts are evaluated.
//   - ReconnectMin / ReconnectMax: bounds of the randomized hub reconnect delay.
//   - MultiUser: keep notification streams for every known account.
//   - PushWhileLocked: keep streams for locked accounts too.
type Config struct {
	NotificationsURL  string
	HubURL            string
	PushRedisAddr     string
	StatePath         string
	AppID             string
	IdleCheckInterval time.Duration
	ReconnectMin      time.Duration
	ReconnectMax      time.Duration
	MultiUser         bool
	PushWhileLocked   bool
}

// LoadDefaults populates Config with sensible development defaults.
func (c *Config) LoadDefaults() {
	c.NotificationsURL = "http://127.0.0.1:8080/notifications"
	c.HubURL = "ws://127.0.0.1:8080/notifications/hub"
	c.PushRedisAddr = ""
	c.StatePath = "vaultcore.db"
	c.AppID = ""
	c.IdleCheckInterval = 10 * time.Second
	c.ReconnectMin = 2 * time.Minute
	c.ReconnectMax = 5 * time.Minute
	c.MultiUser = false
	c.PushWhileLocked = false
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
