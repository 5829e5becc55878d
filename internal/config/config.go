package config

import (
	"github.com/kelseyhightower/envconfig"
)

// Config 服务端配置, 全部来自 LICENSE_ 前缀的环境变量
type Config struct {
	ListenAddr     string `envconfig:"LISTEN_ADDR" default:":8000"`
	DatabasePath   string `envconfig:"DATABASE_PATH" default:"data/license.db"`
	SigningKeyPath string `envconfig:"SIGNING_KEY_PATH"`
	AdminPassword  string `envconfig:"ADMIN_PASSWORD" default:"admin"`

	// Google Sheet 同步配置
	SheetSyncEnabled    bool   `envconfig:"SHEET_SYNC_ENABLED" default:"false"`
	SheetCredentialPath string `envconfig:"SHEET_CREDENTIAL_PATH"`
	SpreadsheetID       string `envconfig:"SPREADSHEET_ID"`
	SheetName           string `envconfig:"SHEET_NAME" default:"licenses"`
}

func Load() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("license", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
