// Package settings 客户端设置：主题、网关地址、登录令牌与幻灯片间隔。
// 启动时显式 Load，之后每个 setter 立即写回 YAML 文件；由调用方注入到各个界面。
package settings

import (
	"Keepsake/internal/client/viewer"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

var ErrUnknownTheme = errors.New("unknown theme")

const DefaultGatewayURL = "http://localhost:8080"

// Values 持久化的内容
type Values struct {
	Theme             Theme         `yaml:"theme"`
	GatewayURL        string        `yaml:"gateway_url"`
	Token             string        `yaml:"token,omitempty"`
	SlideshowInterval time.Duration `yaml:"slideshow_interval"`
}

func defaults() Values {
	return Values{
		Theme:             ThemeSystem,
		GatewayURL:        DefaultGatewayURL,
		SlideshowInterval: viewer.DefaultInterval,
	}
}

type Store struct {
	mu     sync.RWMutex
	path   string
	values Values
}

// Load 读取设置文件，文件不存在时使用默认值
func Load(path string) (*Store, error) {
	s := &Store{path: path, values: defaults()}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err = yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	s.normalize()
	return s, nil
}

func (s *Store) normalize() {
	switch s.values.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		s.values.Theme = ThemeSystem
	}
	if s.values.GatewayURL == "" {
		s.values.GatewayURL = DefaultGatewayURL
	}
	if s.values.SlideshowInterval == 0 {
		s.values.SlideshowInterval = viewer.DefaultInterval
	}
	s.values.SlideshowInterval = viewer.ClampInterval(s.values.SlideshowInterval)
}

func (s *Store) Values() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

func (s *Store) Theme() Theme                     { return s.Values().Theme }
func (s *Store) GatewayURL() string               { return s.Values().GatewayURL }
func (s *Store) Token() string                    { return s.Values().Token }
func (s *Store) SlideshowInterval() time.Duration { return s.Values().SlideshowInterval }

func (s *Store) SetTheme(theme Theme) error {
	switch theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTheme, theme)
	}
	return s.update(func(v *Values) { v.Theme = theme })
}

func (s *Store) SetGatewayURL(url string) error {
	return s.update(func(v *Values) { v.GatewayURL = url })
}

// SetToken 保存登录令牌，传空串表示登出
func (s *Store) SetToken(token string) error {
	return s.update(func(v *Values) { v.Token = token })
}

func (s *Store) SetSlideshowInterval(d time.Duration) error {
	return s.update(func(v *Values) { v.SlideshowInterval = viewer.ClampInterval(d) })
}

func (s *Store) update(fn func(v *Values)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.values
	fn(&next)
	if err := s.save(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

// save 先写临时文件再改名，令牌文件仅本人可读
func (s *Store) save(v Values) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, s.path)
}
