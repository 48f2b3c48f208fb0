package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/portwatch/portwatch/pkg/model"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration. Command-line flags override it.
type Config struct {
	Logger Logger `yaml:"logger"`
	Scan   Scan   `yaml:"scan"`
	Docker Docker `yaml:"docker"`
	UI     UI     `yaml:"ui"`
	API    API    `yaml:"api"`

	path string
}

type Logger struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // text|json
	File   string `yaml:"file"`   // used when the terminal UI owns stdout
}

type Scan struct {
	From      int           `yaml:"from"`
	To        int           `yaml:"to"`
	Protocols []string      `yaml:"protocols"`
	Interval  time.Duration `yaml:"interval"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Docker struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	Binary   string        `yaml:"binary"`
	// Host overrides DOCKER_HOST for the SDK client.
	Host string `yaml:"host"`
}

type UI struct {
	Theme      string `yaml:"theme"` // dark|light
	OnlyUsed   bool   `yaml:"onlyUsed"`
	OnlyDocker bool   `yaml:"onlyDocker"`
}

type API struct {
	Addr string `yaml:"addr"`
}

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Intervals below one second are raised to it; the scheduler cannot go
// finer with @every.
const minInterval = time.Second

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	SetDefault(c)
	return c
}

// SetDefault fills every unset field.
func SetDefault(c *Config) {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "text"
	}
	if c.Logger.File == "" {
		c.Logger.File = defaultLogFile()
	}
	if c.Scan.From == 0 && c.Scan.To == 0 {
		c.Scan.From, c.Scan.To = 1, 1024
	}
	if len(c.Scan.Protocols) == 0 {
		c.Scan.Protocols = []string{"tcp", "udp"}
	}
	if c.Scan.Interval == 0 {
		c.Scan.Interval = 5 * time.Second
	}
	if c.Scan.Interval < minInterval {
		c.Scan.Interval = minInterval
	}
	if c.Scan.Timeout == 0 {
		c.Scan.Timeout = 4 * time.Second
	}
	if c.Docker.Interval == 0 {
		c.Docker.Interval = 10 * time.Second
	}
	if c.Docker.Interval < minInterval {
		c.Docker.Interval = minInterval
	}
	if c.Docker.Timeout == 0 {
		c.Docker.Timeout = 8 * time.Second
	}
	if c.Docker.Binary == "" {
		c.Docker.Binary = "docker"
	}
	if c.UI.Theme != ThemeLight {
		c.UI.Theme = ThemeDark
	}
}

// Load reads path, or the default location when path is empty. A missing
// file is not an error; the defaults are returned and Save will create it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	c := &Config{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	SetDefault(c)
	return c, nil
}

// Path is the file Save writes to.
func (c *Config) Path() string {
	if c.path == "" {
		return DefaultPath()
	}
	return c.path
}

// Save writes the configuration back to its file.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	path := c.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// UpdateUI applies fn to the ui section in memory and on disk. The file is
// reloaded first, so overrides held only in memory (command-line flags) are
// never written out.
func (c *Config) UpdateUI(fn func(*UI)) error {
	fn(&c.UI)
	stored, err := Load(c.Path())
	if err != nil {
		return err
	}
	fn(&stored.UI)
	return stored.Save()
}

// View is the row selection described by the scan and ui sections.
func (c *Config) View() model.View {
	v := model.View{
		From:       c.Scan.From,
		To:         c.Scan.To,
		OnlyUsed:   c.UI.OnlyUsed,
		OnlyDocker: c.UI.OnlyDocker,
	}
	for _, s := range c.Scan.Protocols {
		if p, ok := model.ParseProtocol(s); ok {
			v.Protocols = append(v.Protocols, p)
		}
	}
	return v.Normalize()
}

func (c *Config) Dark() bool {
	return c.UI.Theme != ThemeLight
}

func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "portwatch.yaml"
	}
	return filepath.Join(dir, "portwatch", "config.yaml")
}

func defaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "portwatch.log")
	}
	return filepath.Join(dir, "portwatch", "portwatch.log")
}
