package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "AMER"

type Service struct {
	URL string `yaml:"url" mapstructure:"url"`
}
type Services struct {
	ASR        Service `yaml:"asr" mapstructure:"asr"`
	Prosody    Service `yaml:"prosody" mapstructure:"prosody"`
	Grammar    Service `yaml:"grammar" mapstructure:"grammar"`
	Embedding  Service `yaml:"embedding" mapstructure:"embedding"`
	Generation Service `yaml:"generation" mapstructure:"generation"`
	Emotion    Service `yaml:"emotion" mapstructure:"emotion"`
	Gaze       Service `yaml:"gaze" mapstructure:"gaze"`
}

// Gemini switches reference generation and embeddings to the Gemini API.
type Gemini struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	APIKey         string `yaml:"api_key" mapstructure:"api_key"`
	Model          string `yaml:"model" mapstructure:"model"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
}
type Media struct {
	FFmpegBin  string `yaml:"ffmpeg_bin" mapstructure:"ffmpeg_bin"`
	WorkDir    string `yaml:"work_dir" mapstructure:"work_dir"`
	UploadsDir string `yaml:"uploads_dir" mapstructure:"uploads_dir"`
	SampleRate int    `yaml:"sample_rate" mapstructure:"sample_rate"`
}
type Analysis struct {
	PauseThreshold   float64  `yaml:"pause_threshold" mapstructure:"pause_threshold"`
	WindowMargin     float64  `yaml:"window_margin" mapstructure:"window_margin"`
	GazeFPS          int      `yaml:"gaze_fps" mapstructure:"gaze_fps"`
	Workers          int      `yaml:"workers" mapstructure:"workers"`
	RAGCategories    []string `yaml:"rag_categories" mapstructure:"rag_categories"`
	RAGTopK          int      `yaml:"rag_top_k" mapstructure:"rag_top_k"`
	GrammarLanguage  string   `yaml:"grammar_language" mapstructure:"grammar_language"`
	PositiveEmotions []string `yaml:"positive_emotions" mapstructure:"positive_emotions"`
	NegativeEmotions []string `yaml:"negative_emotions" mapstructure:"negative_emotions"`
}
type Scoring struct {
	DefaultProfile map[string]float64 `yaml:"default_profile" mapstructure:"default_profile"`
}
type Jobs struct {
	Workers    int `yaml:"workers" mapstructure:"workers"`
	QueueSize  int `yaml:"queue_size" mapstructure:"queue_size"`
	TimeoutSec int `yaml:"timeout_sec" mapstructure:"timeout_sec"`
}
type Root struct {
	Pipeline struct {
		Name      string `yaml:"name" mapstructure:"name"`
		Version   string `yaml:"version" mapstructure:"version"`
		LogLvl    string `yaml:"log_level" mapstructure:"log_level"`
		LogFormat string `yaml:"log_format" mapstructure:"log_format"`
	} `yaml:"pipeline" mapstructure:"pipeline"`
	Store struct {
		Path string `yaml:"path" mapstructure:"path"`
	} `yaml:"store" mapstructure:"store"`
	Media    Media    `yaml:"media" mapstructure:"media"`
	Services Services `yaml:"services" mapstructure:"services"`
	Gemini   Gemini   `yaml:"gemini" mapstructure:"gemini"`
	Analysis Analysis `yaml:"analysis" mapstructure:"analysis"`
	Scoring  Scoring  `yaml:"scoring" mapstructure:"scoring"`
	Jobs     Jobs     `yaml:"jobs" mapstructure:"jobs"`
	HTTP     struct {
		Addr string `yaml:"addr" mapstructure:"addr"`
	} `yaml:"http" mapstructure:"http"`
	Profiles struct {
		Dir   string `yaml:"dir" mapstructure:"dir"`
		Watch bool   `yaml:"watch" mapstructure:"watch"`
	} `yaml:"profiles" mapstructure:"profiles"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.name", "amer-sma")
	v.SetDefault("pipeline.version", "dev")
	v.SetDefault("pipeline.log_level", "info")
	v.SetDefault("pipeline.log_format", "text")

	v.SetDefault("store.path", filepath.Join("runtime", "amer.db"))

	v.SetDefault("media.ffmpeg_bin", "ffmpeg")
	v.SetDefault("media.work_dir", filepath.Join("runtime", "work"))
	v.SetDefault("media.uploads_dir", filepath.Join("data", "uploads"))
	v.SetDefault("media.sample_rate", 16000)

	for _, name := range []string{"asr", "prosody", "grammar", "embedding", "generation", "emotion", "gaze"} {
		v.SetDefault("services."+name+".url", "")
	}

	v.SetDefault("gemini.enabled", false)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.embedding_model", "text-embedding-004")

	v.SetDefault("analysis.pause_threshold", 0.5)
	v.SetDefault("analysis.window_margin", 0.1)
	v.SetDefault("analysis.gaze_fps", 2)
	v.SetDefault("analysis.workers", 4)
	v.SetDefault("analysis.rag_categories", []string{"motivation", "company culture"})
	v.SetDefault("analysis.rag_top_k", 2)
	v.SetDefault("analysis.grammar_language", "fr-FR")
	v.SetDefault("analysis.positive_emotions", []string{"calm", "happy"})
	v.SetDefault("analysis.negative_emotions", []string{"angry", "fearful"})

	v.SetDefault("scoring.default_profile", map[string]float64{
		"relevance": 40, "clarity": 30, "fluency": 15, "engagement": 15,
	})

	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.queue_size", 64)
	v.SetDefault("jobs.timeout_sec", 1800)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("profiles.dir", filepath.Join("config", "profiles"))
	v.SetDefault("profiles.watch", true)
}

// Load reads the YAML config at path. With an empty path it guesses
// config/<CONFIG_ENV>/config.yaml then config.yaml and falls back to defaults.
// AMER_* environment variables override file values.
func Load(path string) (*Root, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		guess := []string{
			filepath.Join("config", env, "config.yaml"),
			"config.yaml",
		}
		for _, p := range guess {
			if _, err := os.Stat(p); err != nil {
				continue
			}
			v.SetConfigFile(p)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", p, err)
			}
			break
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without touching the filesystem.
func Default() *Root {
	v := viper.New()
	setDefaults(v)
	var cfg Root
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func (c *Root) validate() error {
	if c.Media.SampleRate <= 0 {
		return errors.New("config: media.sample_rate must be positive")
	}
	if c.Analysis.PauseThreshold < 0 {
		return errors.New("config: analysis.pause_threshold must not be negative")
	}
	if c.Analysis.GazeFPS <= 0 {
		c.Analysis.GazeFPS = 2
	}
	c.Analysis.Workers = clampInt(c.Analysis.Workers, 1, 32)
	c.Jobs.Workers = clampInt(c.Jobs.Workers, 1, 64)
	c.Jobs.QueueSize = clampInt(c.Jobs.QueueSize, c.Jobs.Workers, 1024)
	return nil
}

// JobTimeout is the outer deadline of one analysis run.
func (c *Root) JobTimeout() time.Duration { return DurSeconds(c.Jobs.TimeoutSec) }

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
