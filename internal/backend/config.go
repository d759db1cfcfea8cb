package backend

import (
	"errors"
	"fmt"
	"strings"

	"dindion/internal/config"
)

// FromAppConfig picks the backend fields out of the application config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	cfg := Config{
		Type:         BackendType(strings.ToLower(strings.TrimSpace(appConfig.DataBackend))),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("unknown data backend %q, expected one of %s",
			c.Type, strings.Join(BackendTypeNames(), ", "))
	}
	if c.Type == SQLiteBackend && strings.TrimSpace(c.SQLiteDBPath) == "" {
		return errors.New("the sqlite backend needs SQLITE_DB_PATH")
	}
	return nil
}

func BackendTypeNames() []string {
	return []string{MemoryBackend.String(), SQLiteBackend.String()}
}
