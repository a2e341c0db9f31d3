package daemon

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newStructuredLogger builds the machine-readable audit trail every
// daemon writes alongside its console banner/section output: one
// size-rotated file per daemon name under logDir, 10MB per file, five
// backups kept, gzip-compressed once rotated.
func newStructuredLogger(logDir, name string) zerolog.Logger {
	sink := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, name+".log"),
		MaxSize:    10,
		MaxBackups: 5,
		Compress:   true,
	}
	return zerolog.New(sink).With().Timestamp().Str("daemon", name).Logger()
}
