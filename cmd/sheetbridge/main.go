package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/opsdesk/sheetbridge/internal/app"
	"github.com/opsdesk/sheetbridge/pkg/config"
	"github.com/opsdesk/sheetbridge/pkg/logger"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// flags win over config/env when provided explicitly
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	dbPath := cfg.Storage.DBPath
	if setFlags["db"] {
		dbPath = dbVal
	}

	logger.Init(cfg.Logging.Level)
	logger.Info("sheetbridge_starting",
		"addr", addr, "db", dbPath,
		"sheet", cfg.Sheet.Name, "extract", cfg.Extract.Provider,
		"env_overrides", envUsed)

	if err := app.Run(app.Options{Addr: addr, DBPath: dbPath, Cfg: cfg}); err != nil {
		logger.Error("startup_fatal", "error", err)
		log.Fatalf("sheetbridge: %v", err)
	}
}
