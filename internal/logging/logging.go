package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"board-arena/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	writerMu sync.Mutex
	writer   io.Writer = os.Stdout
	closer   io.Closer
)

// Init configures the global zerolog logger. A LOG_FILE path switches output to
// a size-limited file that Writer also returns for other log sinks.
func Init(cfg config.LogConfig) error {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	out, err := openWriter(cfg)
	if err != nil {
		return err
	}

	var output io.Writer = out
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: out, NoColor: cfg.File != ""}
	}

	zerolog.SetGlobalLevel(level)
	ctx := zerolog.New(output).With().Timestamp()
	if svc := strings.TrimSpace(cfg.Service); svc != "" {
		ctx = ctx.Str("service", svc)
	}
	logger := ctx.Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
	return nil
}

// Writer returns the raw sink behind the global logger.
func Writer() io.Writer {
	writerMu.Lock()
	defer writerMu.Unlock()
	return writer
}

// Close releases the log file, if any, and falls back to stdout.
func Close() error {
	writerMu.Lock()
	defer writerMu.Unlock()
	writer = os.Stdout
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

func openWriter(cfg config.LogConfig) (io.Writer, error) {
	writerMu.Lock()
	defer writerMu.Unlock()
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
	path := strings.TrimSpace(cfg.File)
	if path == "" {
		writer = os.Stdout
		return writer, nil
	}
	w, err := newSizeLimitedWriter(path, cfg.MaxMB)
	if err != nil {
		return nil, err
	}
	writer = w
	closer = w
	return w, nil
}
