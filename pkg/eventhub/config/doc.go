/*
Package config loads event hub settings from YAML, JSON and the environment.

# Accessors

Config wraps a decoded document and returns defaults for missing keys or
values of the wrong type:

	cfg := config.New(map[string]any{"response_timeout": "250ms"})
	timeout := cfg.Duration("response_timeout", time.Second) // 250ms
	depth := cfg.Int("queue_warn_threshold", 1000)           // 1000

Durations accept Go duration strings or plain numbers of milliseconds.

# Hub Settings

Hub is the typed form consumed by the hub constructor:

	settings, err := config.LoadHub("hub.yaml")
	if err != nil {
	    return err
	}
	hub := eventhub.New(eventhub.WithSettings(settings))

LoadHub applies EVENTHUB_ environment variables over the file, so
EVENTHUB_SNAPSHOT__PATH=/var/lib/app/state.db overrides snapshot.path.
Keys set nowhere keep the DefaultHub values. Unknown policies and
non-positive timeouts are rejected with ErrInvalidSetting.
*/
package config
