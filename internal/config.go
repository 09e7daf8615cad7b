package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/koopa0/system-design/14-battleship/internal/game"
	"gopkg.in/yaml.v3"
)

// Config 服務配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Game      GameConfig      `yaml:"game"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	NATS      NATSConfig      `yaml:"nats"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig HTTP 服務配置
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// Addr 監聽地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GameConfig 遊戲規則配置
type GameConfig struct {
	GridSize   int              `yaml:"grid_size"`
	Fleet      []game.ShipClass `yaml:"fleet"`
	RateLimits RateLimits       `yaml:"rate_limits"`
}

// WebSocketConfig 連接配置
//
// PingInterval 必須小於 PongWait（54s / 60s），留出網路延遲的余量。
type WebSocketConfig struct {
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongWait       time.Duration `yaml:"pong_wait"`
	WriteWait      time.Duration `yaml:"write_wait"`
	SendBuffer     int           `yaml:"send_buffer"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

// NATSConfig 對局事件發布配置，URL 為空時不發布
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LogConfig 日誌配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig 返回預設配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Game: GameConfig{
			GridSize:   game.DefaultGridSize,
			Fleet:      game.DefaultFleet(),
			RateLimits: DefaultRateLimits(),
		},
		WebSocket: WebSocketConfig{
			PingInterval:   54 * time.Second,
			PongWait:       60 * time.Second,
			WriteWait:      10 * time.Second,
			SendBuffer:     256,
			MaxMessageSize: 4096,
		},
		NATS: NATSConfig{
			SubjectPrefix: "battleship",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig 載入配置
//
// 順序：預設值 → YAML 檔案（不存在則略過）→ 環境變數。
// YAML 只需要寫要覆蓋的欄位；rate_limits 以操作為單位合併。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		// #nosec G304 - path 來自命令行參數
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			limits := cfg.Game.RateLimits
			cfg.Game.RateLimits = nil
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
			for kind, d := range cfg.Game.RateLimits {
				limits[kind] = d
			}
			cfg.Game.RateLimits = limits
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 環境變數覆蓋
func (c *Config) applyEnv() error {
	if host := os.Getenv("BATTLESHIP_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("BATTLESHIP_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("BATTLESHIP_PORT 不是合法端口: %w", err)
		}
		c.Server.Port = p
	}
	if url := os.Getenv("BATTLESHIP_NATS_URL"); url != "" {
		c.NATS.URL = url
	}
	return nil
}

// Validate 檢查配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("端口必須在 1-65535 之間: %d", c.Server.Port)
	}
	if c.Game.GridSize < 2 {
		return fmt.Errorf("棋盤邊長至少為 2: %d", c.Game.GridSize)
	}
	if len(c.Game.Fleet) == 0 {
		return errors.New("艦隊不能為空")
	}
	names := make(map[string]bool)
	for _, sc := range c.Game.Fleet {
		if sc.Name == "" {
			return errors.New("艦種名稱不能為空")
		}
		if names[sc.Name] {
			return fmt.Errorf("艦種名稱重複: %s", sc.Name)
		}
		names[sc.Name] = true
		if sc.Length <= 0 || sc.Length > c.Game.GridSize {
			return fmt.Errorf("%s 長度必須在 1-%d 之間", sc.Name, c.Game.GridSize)
		}
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		return fmt.Errorf("ping_interval (%v) 必須小於 pong_wait (%v)", c.WebSocket.PingInterval, c.WebSocket.PongWait)
	}
	if c.WebSocket.SendBuffer <= 0 {
		return errors.New("send_buffer 必須為正數")
	}
	return nil
}
