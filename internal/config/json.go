package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/vaultcore/internal/flagx"
	"github.com/dmitrijs2005/vaultcore/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "10s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	NotificationsURL  string         `json:"notifications_url"`
	HubURL            string         `json:"hub_url"`
	PushRedisAddr     string         `json:"push_redis_addr"`
	StatePath         string         `json:"state_path"`
	AppID             string         `json:"app_id"`
	IdleCheckInterval timex.Duration `json:"idle_check_interval"`
	ReconnectMin      timex.Duration `json:"reconnect_min"`
	ReconnectMax      timex.Duration `json:"reconnect_max"`
	MultiUser         bool           `json:"multi_user"`
	PushWhileLocked   bool           `json:"push_while_locked"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; when neither is set, no JSON file is loaded. An unreadable file or
// invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.NotificationsURL = c.NotificationsURL
	config.HubURL = c.HubURL
	config.PushRedisAddr = c.PushRedisAddr
	config.StatePath = c.StatePath
	config.AppID = c.AppID
	config.IdleCheckInterval = time.Duration(c.IdleCheckInterval.Duration)
	config.ReconnectMin = time.Duration(c.ReconnectMin.Duration)
	config.ReconnectMax = time.Duration(c.ReconnectMax.Duration)
	config.MultiUser = c.MultiUser
	config.PushWhileLocked = c.PushWhileLocked
}
