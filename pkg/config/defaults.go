package config

const (
	defaultStorageBackend = "sqlite"
	defaultAPIListen      = ":8081"

	defaultEventsBackend = "none"
	defaultKafkaBrokers  = "localhost:9092"
	defaultKafkaTopic    = "loom.branch.events"

	defaultScoreMomentum = 0.4
	defaultScoreRecency  = 0.3
	defaultScoreFeedback = 0.3

	defaultCleanupMaxAgeDays = 30

	defaultChatTarget = "http://localhost:11434"
	defaultChatModel  = "llama3.2"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
// Storage.SQLitePath is left empty; the workspace resolves it to a
// loom.db inside the target .loom/ directory.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Backend: defaultStorageBackend,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Backend:      defaultEventsBackend,
			KafkaBrokers: defaultKafkaBrokers,
			KafkaTopic:   defaultKafkaTopic,
		},
		Score: ScoreConfig{
			Momentum: defaultScoreMomentum,
			Recency:  defaultScoreRecency,
			Feedback: defaultScoreFeedback,
		},
		Cleanup: CleanupConfig{
			MaxAgeDays: defaultCleanupMaxAgeDays,
		},
		Chat: ChatConfig{
			Target: defaultChatTarget,
			Model:  defaultChatModel,
		},
	}
}
