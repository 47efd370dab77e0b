package configs

// DatabaseConfig selects the SQL backend holding asset and script rows.
type DatabaseConfig struct {
	Dialect            string `mapstructure:"dialect" validate:"required,oneof=sqlite postgres"`
	DSN                string `mapstructure:"dsn" validate:"required"`
	MaxOpenConnection  int    `mapstructure:"max_open_connection"`
	MaxIdealConnection int    `mapstructure:"max_ideal_connection"`
}

// RedisConfig is optional; an empty Host disables the transcript cache.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// TTLSeconds bounds how long cached transcripts live.
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// FileOpsConfig tunes the file safety layer.
type FileOpsConfig struct {
	Attempts     int    `mapstructure:"attempts" validate:"required,min=1,max=10"`
	DelayMs      int    `mapstructure:"delay_ms" validate:"min=0"`
	MinFreeBytes uint64 `mapstructure:"min_free_bytes"`
}

// StorageConfig locates asset files on disk.
type StorageConfig struct {
	AssetRoot string `mapstructure:"asset_root" validate:"required"`
}

// PipelineConfig toggles post-processing stages.
type PipelineConfig struct {
	TrimEnabled      bool   `mapstructure:"trim_enabled"`
	TrimSensitivity  string `mapstructure:"trim_sensitivity" validate:"oneof=low medium high"`
	EnhanceEnabled   bool   `mapstructure:"enhance_enabled"`
	TranscribeOnSave bool   `mapstructure:"transcribe_on_save"`
	DefaultLanguage  string `mapstructure:"default_language"`
}

// TranscriptionConfig selects and authenticates the transcription provider.
type TranscriptionConfig struct {
	Provider string `mapstructure:"provider" validate:"oneof=none google openai deepgram"`
	APIKey   string `mapstructure:"api_key"`
	Project  string `mapstructure:"project"`
	Region   string `mapstructure:"region"`
	Model    string `mapstructure:"model"`
	// CredentialsJSON is a Google service account key.
	CredentialsJSON string `mapstructure:"credentials_json"`
}

// CoordinatorConfig drives the state machine clock.
type CoordinatorConfig struct {
	TickMs       int `mapstructure:"tick_ms" validate:"required,min=10,max=1000"`
	LevelHistory int `mapstructure:"level_history" validate:"min=0"`
}

// InterruptionConfig configures platform event sources.
type InterruptionConfig struct {
	RouteStateFile string `mapstructure:"route_state_file"`
}
