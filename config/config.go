package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	Jira   Jira   `toml:"jira"`
	Proxy  Proxy  `toml:"proxy"`
	Server Server `toml:"server"`
	Log    Log    `toml:"log"`
	SFTP   SFTP   `toml:"sftp"`

	// プロダクト要素に付与する既定属性 ("status=active; priority=P0; team=")
	ProductDefaults string `toml:"product_defaults"`
	// マッピングプロファイル (YAML) のパス
	MappingProfile string `toml:"mapping_profile"`
}

// Jira はJIRA API設定です
type Jira struct {
	URL             string `toml:"url"`
	Email           string `toml:"email"`
	APIToken        string `toml:"api_token"`
	StoryPointField string `toml:"story_point_field"`
}

// Configured は検索に必要な認証情報が揃っているかを返します
func (j Jira) Configured() bool {
	return j.URL != "" && j.Email != "" && j.APIToken != ""
}

// Proxy はプロキシ経由で検索するクライアント側の設定です
type Proxy struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// Server はプロキシサーバーの設定です
type Server struct {
	Bind        string `toml:"bind"`
	AllowOrigin string `toml:"allow_origin"`
	APIKey      string `toml:"api_key"`
}

// Log はログ出力の設定です
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" または "json"
}

// SFTP は生成したドキュメントのアップロード先です
type SFTP struct {
	Host                  string `toml:"host"`
	Port                  int    `toml:"port"`
	User                  string `toml:"user"`
	Pass                  string `toml:"pass"`
	RemoteDir             string `toml:"remote_dir"`
	KnownHosts            string `toml:"known_hosts"`
	InsecureIgnoreHostKey bool   `toml:"insecure_ignore_host_key"`
}

// LoadConfig は設定ファイル (TOML, 任意) と環境変数から設定を読み込みます
// 環境変数の値が設定ファイルより優先されます
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイル読み込みエラー %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイル解析エラー %s: %w", path, err)
		}
	}

	// .envファイルを読み込む
	_ = godotenv.Load()

	applyEnv(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	// プロキシ環境の JIRA_BASE_URL も受け付ける (JIRA_URL が優先)
	overrideString(&cfg.Jira.URL, "JIRA_BASE_URL")
	overrideString(&cfg.Jira.URL, "JIRA_URL")
	overrideString(&cfg.Jira.Email, "JIRA_EMAIL")
	overrideString(&cfg.Jira.APIToken, "JIRA_API_TOKEN")
	overrideString(&cfg.Jira.StoryPointField, "JIRA_STORY_POINT_FIELD")

	overrideString(&cfg.Proxy.URL, "PROXY_URL")
	overrideString(&cfg.Proxy.APIKey, "PROXY_API_KEY")

	overrideString(&cfg.Server.Bind, "BIND")
	overrideString(&cfg.Server.AllowOrigin, "ALLOW_ORIGIN")
	overrideString(&cfg.Server.APIKey, "PROXY_API_KEY")

	overrideString(&cfg.Log.Level, "LOG_LEVEL")
	overrideString(&cfg.Log.Format, "LOG_FORMAT")

	overrideString(&cfg.ProductDefaults, "PRODUCT_DEFAULTS")
	overrideString(&cfg.MappingProfile, "MAPPING_PROFILE")

	overrideString(&cfg.SFTP.Host, "SFTP_HOST")
	overrideInt(&cfg.SFTP.Port, "SFTP_PORT")
	overrideString(&cfg.SFTP.User, "SFTP_USER")
	overrideString(&cfg.SFTP.Pass, "SFTP_PASS")
	overrideString(&cfg.SFTP.RemoteDir, "SFTP_REMOTE_DIR")
	overrideString(&cfg.SFTP.KnownHosts, "SFTP_KNOWN_HOSTS")
	overrideBool(&cfg.SFTP.InsecureIgnoreHostKey, "SFTP_INSECURE_IGNORE_HOST_KEY")
}

func applyDefaults(cfg *Config) {
	cfg.Jira.URL = strings.TrimRight(cfg.Jira.URL, "/")
	cfg.Proxy.URL = strings.TrimRight(cfg.Proxy.URL, "/")

	if cfg.Jira.StoryPointField == "" {
		cfg.Jira.StoryPointField = "customfield_10016"
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = ":3002"
	}
	if cfg.Server.AllowOrigin == "" {
		cfg.Server.AllowOrigin = "*"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.ProductDefaults == "" {
		cfg.ProductDefaults = DefaultProductDefaults
	}
	if cfg.SFTP.Port <= 0 {
		cfg.SFTP.Port = 22
	}
	if cfg.SFTP.RemoteDir == "" {
		cfg.SFTP.RemoteDir = "/"
	}
}

// 環境変数が空でなければ上書き
func overrideString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// 環境変数を整数として上書き (不正な値は無視)
func overrideInt(dst *int, key string) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return
	}
	*dst = value
}

func overrideBool(dst *bool, key string) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return
	}
	*dst = value
}

// ResolveProfile は設定に従ってマッピングプロファイルを読み込みます
// ProductDefaults が組み込みの既定値から変更されていればプロファイルの defaults より優先します
func (c *Config) ResolveProfile() (*Profile, error) {
	p := DefaultProfile()
	if c.MappingProfile != "" {
		loaded, err := LoadProfile(c.MappingProfile)
		if err != nil {
			return nil, err
		}
		p = loaded
	}
	if c.ProductDefaults != "" && c.ProductDefaults != DefaultProductDefaults {
		p.Defaults = c.ProductDefaults
	}
	return p, nil
}
