package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type PlaybackConfig struct {
	MinSteps int           `mapstructure:"min_steps" validate:"gte=1"`
	MaxSteps int           `mapstructure:"max_steps" validate:"gtefield=MinSteps"`
	MinDelay time.Duration `mapstructure:"min_delay" validate:"gt=0"`
	MaxDelay time.Duration `mapstructure:"max_delay" validate:"gtefield=MinDelay"`
}

type TTSConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey  string `mapstructure:"api_key"`
	Voice   string `mapstructure:"voice"`
}

type BlendshapeConfig struct {
	Dir string `mapstructure:"dir"`
}

type Config struct {
	Mode       string        `mapstructure:"mode" validate:"oneof=release debug"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	ReadLimit  int64         `mapstructure:"read_limit" validate:"gt=0"`
	PingPeriod time.Duration `mapstructure:"ping_period" validate:"gt=0"`
	Secret     string        `mapstructure:"secret"`

	Playback   PlaybackConfig   `mapstructure:"playback"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Blendshape BlendshapeConfig `mapstructure:"blendshape"`
}

func Load() (*Config, error) {
	// .env is optional; it carries secret material like the TTS key.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("host", "")
	v.SetDefault("port", 3100)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("playback.min_steps", 5)
	v.SetDefault("playback.max_steps", 10)
	v.SetDefault("playback.min_delay", "500ms")
	v.SetDefault("playback.max_delay", "2s")
	v.SetDefault("tts.base_url", "https://open.bigmodel.cn/api/paas/v4")
	v.SetDefault("tts.voice", "tongtong")
	v.SetDefault("blendshape.dir", "./data/blendshapes")

	v.SetEnvPrefix("actiond")
	v.AutomaticEnv()
	_ = v.BindEnv("tts.api_key", "ACTIOND_TTS_API_KEY")
	_ = v.BindEnv("secret", "ACTIOND_SECRET")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fmt.Printf("🧩 Mode: %s | Port: %d\n", cfg.Mode, cfg.Port)
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
