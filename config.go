package embedhttp

import (
	"fmt"
	"time"

	"github.com/yourusername/embedhttp/internal/bodystream"
	"github.com/yourusername/embedhttp/internal/nettune"
	"github.com/yourusername/embedhttp/internal/tlsio"
	"github.com/yourusername/embedhttp/internal/worker"
)

// ListenerConfig describes one bind address the Server accepts on. TLS is
// optional per listener, matching spec §4.K's "optional TLS cert chain +
// key + SNI hostnames" per-entry shape.
type ListenerConfig struct {
	Addr string
	TLS  *tlsio.Config
}

// Config collects every tunable named in spec §4.M plus the accept-rate
// guard and shutdown-grace supplements.
type Config struct {
	Listeners        []ListenerConfig
	Handler          Handler
	NumWorkerThreads int
	QueueBound       int
	ShutdownDuration time.Duration

	RequestBufferSize int
	MaxPreambleBytes  int
	MaxBytesToDrain   int64
	ChunkedBufferSize int

	MaxRequestBodySize map[string]int64 // content-type pattern -> byte limit
	MaxChunkSize       uint64

	InitialReadTimeout    time.Duration
	KeepAliveTimeout      time.Duration
	ReadThroughputWarmup  time.Duration
	WriteThroughputWarmup time.Duration
	MinReadThroughput     float64
	MinWriteThroughput    float64

	CompressByDefault bool
	Multipart         MultipartConfig

	MaxRequestsPerConnection int
	DefaultCharset           string

	Instrumenter Instrumenter

	// MaxAcceptsPerSecond bounds the listener accept loops with an
	// x/time/rate.Limiter so a connection storm cannot outrun the worker
	// pool's ability to drain it during shutdown. 0 means unbounded.
	MaxAcceptsPerSecond float64

	// LogFile, when set, routes the ambient zap logger through a
	// lumberjack-rotated file sink instead of stderr.
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	// SocketTuning controls the TCP_NODELAY/buffer/keepalive options
	// applied to listening and accepted sockets. Nil uses
	// nettune.DefaultConfig(); set DisableSocketTuning to skip entirely.
	SocketTuning        *nettune.Config
	DisableSocketTuning bool
}

// MultipartConfig mirrors the `multipart` block of spec §4.M.
type MultipartConfig = worker.MultipartConfig

// DefaultConfig returns a Config with the same conservative defaults the
// teacher's server.DefaultConfig applies, adapted to this engine's surface.
func DefaultConfig() Config {
	return Config{
		NumWorkerThreads:      256,
		QueueBound:            1024,
		ShutdownDuration:      30 * time.Second,
		RequestBufferSize:     4096,
		MaxPreambleBytes:      128 << 10,
		MaxBytesToDrain:       1 << 20,
		ChunkedBufferSize:     4096,
		MaxChunkSize:          16 << 20,
		InitialReadTimeout:    60 * time.Second,
		KeepAliveTimeout:      120 * time.Second,
		ReadThroughputWarmup:  5 * time.Second,
		WriteThroughputWarmup: 5 * time.Second,
		DefaultCharset:        "UTF-8",
		LogMaxSizeMB:          100,
		LogMaxBackups:         3,
		LogMaxAgeDays:         28,
	}
}

// Validate checks mutually-dependent tunables and returns a single error
// aggregating every violation found, rather than failing on the first.
func (c *Config) Validate() error {
	var problems []string

	if c.Handler == nil {
		problems = append(problems, "Handler is required")
	}
	if len(c.Listeners) == 0 {
		problems = append(problems, "at least one listener is required")
	}
	for i, l := range c.Listeners {
		if l.Addr == "" {
			problems = append(problems, fmt.Sprintf("listeners[%d]: Addr is required", i))
		}
	}
	if c.NumWorkerThreads <= 0 {
		problems = append(problems, "NumWorkerThreads must be positive")
	}
	if c.Multipart.Enabled {
		opt := c.Multipart.Options
		if opt.MaxFileSize > 0 && opt.MaxRequestSize > 0 && opt.MaxFileSize > opt.MaxRequestSize {
			problems = append(problems, "Multipart.Options.MaxFileSize must be <= MaxRequestSize")
		}
	}
	if c.MinReadThroughput > 0 && c.ReadThroughputWarmup <= 0 {
		problems = append(problems, "MinReadThroughput requires a positive ReadThroughputWarmup")
	}
	if c.MinWriteThroughput > 0 && c.WriteThroughputWarmup <= 0 {
		problems = append(problems, "MinWriteThroughput requires a positive WriteThroughputWarmup")
	}

	if len(problems) == 0 {
		return nil
	}
	err := fmt.Errorf("embedhttp: invalid configuration:")
	for _, p := range problems {
		err = fmt.Errorf("%w\n  - %s", err, p)
	}
	return err
}

func (c *Config) sizeLimiter() *bodystream.SizeLimiter {
	if len(c.MaxRequestBodySize) == 0 {
		return nil
	}
	var global int64
	if v, ok := c.MaxRequestBodySize["*"]; ok {
		global = v
	}
	return bodystream.NewSizeLimiter(c.MaxRequestBodySize, global)
}

func (c *Config) workerConfig() worker.Config {
	return worker.Config{
		RequestBufferSize:        c.RequestBufferSize,
		MaxPreambleBytes:         c.MaxPreambleBytes,
		MaxBytesToDrain:          c.MaxBytesToDrain,
		ChunkedBufferSize:        c.ChunkedBufferSize,
		BodySizeLimiter:          c.sizeLimiter(),
		MaxChunkSize:             c.MaxChunkSize,
		InitialReadTimeout:       c.InitialReadTimeout,
		KeepAliveTimeout:         c.KeepAliveTimeout,
		ReadThroughputWarmup:     c.ReadThroughputWarmup,
		WriteThroughputWarmup:    c.WriteThroughputWarmup,
		MinReadThroughput:        c.MinReadThroughput,
		MinWriteThroughput:       c.MinWriteThroughput,
		CompressByDefault:        c.CompressByDefault,
		Multipart:                c.Multipart,
		MaxRequestsPerConnection: c.MaxRequestsPerConnection,
		DefaultCharset:           c.DefaultCharset,
		Instrumenter:             c.Instrumenter,
	}
}
