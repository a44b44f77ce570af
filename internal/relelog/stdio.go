package relelog

import "log/slog"

// SetupStdioMode initializes file-only logging suitable for a process
// whose stdout/stderr are reserved for the MCP JSON-RPC stream. Any write
// to either stream would corrupt the protocol framing, so stderr output
// is always disabled here regardless of cfg defaults.
func SetupStdioMode(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	slog.Info("stdio-safe logging initialized", slog.String("level", level))
	return cleanup, nil
}
