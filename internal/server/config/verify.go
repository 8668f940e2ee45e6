package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/yndnr/apanic-go/internal/core/record"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyPartition(&cfg.Partition); err != nil {
		return err
	}
	if err := verifyEngine(&cfg.Engine); err != nil {
		return err
	}
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	if cfg.Debug.AllowCrash && !cfg.Debug.EnableTrigger {
		return errors.New("debug.allow_crash requires debug.enable_trigger")
	}
	return nil
}

func verifyPartition(cfg *PartitionSection) error {
	if cfg.PanicLabel == "" {
		return errors.New("partition.panic_label is required")
	}
	if cfg.MemdumpEnabled && cfg.MemdumpLabel == "" {
		return errors.New("partition.memdump_label is required when memdump is enabled")
	}
	if cfg.MemdumpEnabled && cfg.MemdumpLabel == cfg.PanicLabel {
		return errors.New("partition.memdump_label must differ from partition.panic_label")
	}
	if cfg.RAMSize < 0 {
		return errors.New("partition.ram_size must not be negative")
	}
	if cfg.RAMSize > 0 && cfg.RAMSize < 2*record.PageSize {
		return fmt.Errorf("partition.ram_size must be at least %d bytes", 2*record.PageSize)
	}
	if cfg.RAMSize == 0 && cfg.Dir == "" {
		return errors.New("partition.dir is required")
	}
	return nil
}

func verifyEngine(cfg *EngineSection) error {
	if cfg.CaptureLockTimeout <= 0 {
		return errors.New("engine.capture_lock_timeout must be positive")
	}
	if cfg.EraseMaxBytesPerSec < 0 {
		return errors.New("engine.erase_max_bytes_per_sec must not be negative")
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
			return fmt.Errorf("server.http.addr: %w", err)
		}
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	if cfg.HTTP.Addr == "" && cfg.Local.Path == "" {
		return errors.New("at least one of server.http.addr or server.local.path is required")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	if cfg.BufferSize < record.PageSize {
		return fmt.Errorf("log.buffer_size must be at least %d bytes", record.PageSize)
	}
	return nil
}
