package bot

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/EgorLis/adaptgo/pkg/adapt"
	"gopkg.in/yaml.v3"
)

type LogConf struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // console|json
}

type MetricsConf struct {
	// Listen — адрес для /metrics и /healthz; пусто — сервер не поднимается.
	Listen    string `yaml:"listen"`
	Namespace string `yaml:"namespace"`
}

type BotConfig struct {
	Token      string       `yaml:"token"`
	Prefix     string       `yaml:"prefix"`
	Codec      string       `yaml:"codec"` // json|msgpack|proto
	CacheLimit int          `yaml:"cache_limit"`
	Adapt      adapt.Config `yaml:"adapt"`
	Log        LogConf      `yaml:"log"`
	Metrics    MetricsConf  `yaml:"metrics"`
}

func DefaultConfig() BotConfig {
	return BotConfig{
		Prefix: "!",
		Codec:  "json",
		Adapt:  adapt.DefaultConfig(),
		Log:    LogConf{Level: "info", Format: "console"},
		Metrics: MetricsConf{
			Listen:    ":9108",
			Namespace: "adaptbot",
		},
	}
}

type configStore struct {
	mu   sync.Mutex
	path string
	data BotConfig
}

func newConfigStore(path string) *configStore {
	return &configStore{path: path, data: DefaultConfig()}
}

// LoadConfig читает YAML (создаёт файл с умолчаниями, если его нет) и
// накладывает переменные окружения ADAPT_*.
func LoadConfig(path string) (BotConfig, error) {
	cs := newConfigStore(path)
	if err := cs.Load(); err != nil {
		return BotConfig{}, err
	}
	cfg := cs.Data()
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return BotConfig{}, err
	}
	return cfg, nil
}

func (cs *configStore) Load() error {
	cs.mu.Lock()
	f := cs.path
	_ = os.MkdirAll(filepath.Dir(f), 0755)
	b, err := os.ReadFile(f)
	if err != nil {
		cs.mu.Unlock()
		if os.IsNotExist(err) {
			return cs.Save() // создаём с умолчаниями
		}
		return err
	}
	defer cs.mu.Unlock()
	if err := yaml.Unmarshal(b, &cs.data); err != nil {
		return fmt.Errorf("config %s: %w", f, err)
	}
	return nil
}

func (cs *configStore) Save() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	b, err := yaml.Marshal(&cs.data)
	if err != nil {
		return err
	}
	// в файле может лежать токен
	return os.WriteFile(cs.path, b, 0600)
}

func (cs *configStore) Data() BotConfig {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.data
}

func applyEnv(cfg *BotConfig, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"ADAPT_TOKEN":          &cfg.Token,
		"ADAPT_PREFIX":         &cfg.Prefix,
		"ADAPT_CODEC":          &cfg.Codec,
		"ADAPT_API":            &cfg.Adapt.API,
		"ADAPT_CDN":            &cfg.Adapt.CDN,
		"ADAPT_GATEWAY":        &cfg.Adapt.Gateway,
		"ADAPT_STATUS":         &cfg.Adapt.Status,
		"ADAPT_LOG_LEVEL":      &cfg.Log.Level,
		"ADAPT_LOG_FORMAT":     &cfg.Log.Format,
		"ADAPT_METRICS_LISTEN": &cfg.Metrics.Listen,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := lookup("ADAPT_CACHE_LIMIT"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ADAPT_CACHE_LIMIT: %w", err)
		}
		cfg.CacheLimit = n
	}
	return nil
}
