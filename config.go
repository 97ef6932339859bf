package runner

import "time"

// Config holds configuration shared by the coordinator components.
type Config struct {
	// DefaultDelay is the tick period used when a periodic task is started
	// without an explicit delay.
	DefaultDelay time.Duration

	// ShutdownTimeout is the maximum time to wait for running tick loops
	// to finish on shutdown.
	ShutdownTimeout time.Duration

	// TickTimeout bounds a single tick. Zero disables it.
	TickTimeout time.Duration

	// SettingsPrompt is the message shown when location access is denied.
	SettingsPrompt string

	// BackgroundFlagKey is the persisted key recording whether the host
	// went to background while a task was running.
	BackgroundFlagKey string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultDelay:      3 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		SettingsPrompt:    "Allow all the time Location Permission.",
		BackgroundFlagKey: "DID_APP_ENTER_BG_WHILE_PROCESSING",
	}
}
