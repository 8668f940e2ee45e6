package config

import "time"

// ServerConfig is the root configuration for apanic-server.
type ServerConfig struct {
	Partition PartitionSection `koanf:"partition"`
	Engine    EngineSection    `koanf:"engine"`
	Memdump   MemdumpSection   `koanf:"memdump"`
	Server    ServerSection    `koanf:"server"`
	Debug     DebugSection     `koanf:"debug"`
	Log       LogSection       `koanf:"log"`
}

// PartitionSection selects the backing partitions.
type PartitionSection struct {
	// Dir is the directory partitions are linked into by label.
	Dir string `koanf:"dir"`

	// PanicLabel is the label of the panic partition.
	PanicLabel string `koanf:"panic_label"`

	// MemdumpLabel is the label of the full memory snapshot partition.
	MemdumpLabel string `koanf:"memdump_label"`

	// MemdumpEnabled turns on full memory snapshots.
	MemdumpEnabled bool `koanf:"memdump_enabled"`

	// RAMSize, when positive, replaces both partitions with RAM-backed
	// ones of this size. Records do not survive a restart.
	RAMSize int64 `koanf:"ram_size"`
}

// EngineSection tunes the capture engine.
type EngineSection struct {
	CaptureLockTimeout  time.Duration `koanf:"capture_lock_timeout"`
	EraseMaxBytesPerSec int64         `koanf:"erase_max_bytes_per_sec"`
}

// MemdumpSection configures the heap dump memory source.
type MemdumpSection struct {
	ScratchDir string `koanf:"scratch_dir"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP  HTTPConfig  `koanf:"http"`
	Local LocalConfig `koanf:"local"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// AuthToken, when set, must be presented as a bearer token on routes
	// that erase the record or run the failure path.
	AuthToken string `koanf:"auth_token"`
}

// LocalConfig configures the local management socket.
type LocalConfig struct {
	Path string `koanf:"path"`
}

// DebugSection gates the debug routes.
type DebugSection struct {
	EnableTrigger bool `koanf:"enable_trigger"`
	AllowCrash    bool `koanf:"allow_crash"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`

	// BufferSize is the console ring capacity in bytes.
	BufferSize int `koanf:"buffer_size"`
}
