package config

import "os"

// EnvEventStoreDSN names the environment variable carrying the postgres
// connection string for the event store.
const EnvEventStoreDSN = "EVENT_STORE_DSN"

// EventStoreDSN resolves the event store connection string. An explicit
// flag value wins over the environment; empty means the in-memory store.
func EventStoreDSN(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvEventStoreDSN)
}
