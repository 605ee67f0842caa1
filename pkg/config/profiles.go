package config

import "os"

func loadDevelopmentConfig(cfg *Config) {
	cfg.DatabaseDebug = true
	cfg.DatabaseFilePath = "./tmp/progress.sqlite"
}

func loadTestConfig(cfg *Config) {
	cfg.DatabaseFilePath = ":memory:"
}

func loadProductionConfig(cfg *Config) {
	cfg.DatabaseFilePath = "/data/progress.sqlite"
	if path := os.Getenv("DATABASE_FILE_PATH"); path != "" {
		cfg.DatabaseFilePath = path
	}
}
