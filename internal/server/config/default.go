package config

import "time"

// Default configuration values.
const (
	DefaultPartitionDir = "/dev/block/by-name"
	DefaultPanicLabel   = "kpanic"
	DefaultMemdumpLabel = "memdump"

	DefaultCaptureLockTimeout = 2 * time.Second

	DefaultHTTPAddr    = "127.0.0.1:5080"
	DefaultLocalSocket = "/var/run/apanic-server/apanic-server.sock"

	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	DefaultBufferSize = 128 << 10
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Partition: PartitionSection{
			Dir:          DefaultPartitionDir,
			PanicLabel:   DefaultPanicLabel,
			MemdumpLabel: DefaultMemdumpLabel,
		},
		Engine: EngineSection{
			CaptureLockTimeout: DefaultCaptureLockTimeout,
		},
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
			Local: LocalConfig{
				Path: DefaultLocalSocket,
			},
		},
		Log: LogSection{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			BufferSize: DefaultBufferSize,
		},
	}
}
