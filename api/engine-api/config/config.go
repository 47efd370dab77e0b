package config

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/affirmai/engine/pkg/configs"
)

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Env      string `mapstructure:"env"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path"`

	// origins allowed to reach the control surface from a UI process
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	DatabaseConfig      configs.DatabaseConfig      `mapstructure:"database" validate:"required"`
	RedisConfig         configs.RedisConfig         `mapstructure:"redis"`
	StorageConfig       configs.StorageConfig       `mapstructure:"storage" validate:"required"`
	FileOpsConfig       configs.FileOpsConfig       `mapstructure:"fileops" validate:"required"`
	PipelineConfig      configs.PipelineConfig      `mapstructure:"pipeline" validate:"required"`
	TranscriptionConfig configs.TranscriptionConfig `mapstructure:"transcription"`
	CoordinatorConfig   configs.CoordinatorConfig   `mapstructure:"coordinator" validate:"required"`
	InterruptionConfig  configs.InterruptionConfig  `mapstructure:"interruption"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil {
		log.Printf("no config file found, reading from env variables.")
	}
	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// keeping watch on https://github.com/spf13/viper/issues/188
	v.SetDefault("SERVICE_NAME", "affirm-engine")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("ENV", "development")
	v.SetDefault("HOST", "127.0.0.1")
	v.SetDefault("PORT", 9191)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PATH", "")
	v.SetDefault("ALLOWED_ORIGINS", []string{"http://localhost", "http://127.0.0.1"})

	v.SetDefault("DATABASE__DIALECT", "sqlite")
	v.SetDefault("DATABASE__DSN", "affirm.db")
	v.SetDefault("DATABASE__MAX_OPEN_CONNECTION", 4)
	v.SetDefault("DATABASE__MAX_IDEAL_CONNECTION", 2)

	v.SetDefault("REDIS__HOST", "")
	v.SetDefault("REDIS__PORT", 6379)
	v.SetDefault("REDIS__DB", 0)
	v.SetDefault("REDIS__TTL_SECONDS", 7*24*3600)

	v.SetDefault("STORAGE__ASSET_ROOT", "recordings")

	v.SetDefault("FILEOPS__ATTEMPTS", 3)
	v.SetDefault("FILEOPS__DELAY_MS", 100)
	v.SetDefault("FILEOPS__MIN_FREE_BYTES", 50<<20)

	v.SetDefault("PIPELINE__TRIM_ENABLED", true)
	v.SetDefault("PIPELINE__TRIM_SENSITIVITY", "medium")
	v.SetDefault("PIPELINE__ENHANCE_ENABLED", true)
	v.SetDefault("PIPELINE__TRANSCRIBE_ON_SAVE", false)
	v.SetDefault("PIPELINE__DEFAULT_LANGUAGE", "en-US")

	v.SetDefault("TRANSCRIPTION__PROVIDER", "none")
	v.SetDefault("TRANSCRIPTION__API_KEY", "")
	v.SetDefault("TRANSCRIPTION__PROJECT", "")
	v.SetDefault("TRANSCRIPTION__REGION", "global")
	v.SetDefault("TRANSCRIPTION__MODEL", "")
	v.SetDefault("TRANSCRIPTION__CREDENTIALS_JSON", "")

	v.SetDefault("COORDINATOR__TICK_MS", 50)
	v.SetDefault("COORDINATOR__LEVEL_HISTORY", 50)

	v.SetDefault("INTERRUPTION__ROUTE_STATE_FILE", "")
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
