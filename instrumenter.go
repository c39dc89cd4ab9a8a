package embedhttp

import (
	"go.uber.org/zap"

	"github.com/yourusername/embedhttp/internal/worker"
)

// loggingInstrumenter logs worker events at the levels SPEC_FULL.md's
// ambient logging section names, then forwards every event to the
// embedder-supplied Instrumenter (or NoopInstrumenter if none was set).
type loggingInstrumenter struct {
	logger *zap.Logger
	next   Instrumenter
}

func newLoggingInstrumenter(logger *zap.Logger, next Instrumenter) *loggingInstrumenter {
	if next == nil {
		next = worker.NoopInstrumenter{}
	}
	return &loggingInstrumenter{logger: logger, next: next}
}

func (i *loggingInstrumenter) AcceptedConnection(remoteAddr string) {
	i.logger.Debug("accepted connection", zap.String("remote_addr", remoteAddr))
	i.next.AcceptedConnection(remoteAddr)
}

func (i *loggingInstrumenter) BadRequest(err error) {
	i.logger.Warn("bad request", zap.Error(err))
	i.next.BadRequest(err)
}

func (i *loggingInstrumenter) ChunkedRequest() {
	i.next.ChunkedRequest()
}

func (i *loggingInstrumenter) ChunkedResponse() {
	i.next.ChunkedResponse()
}

func (i *loggingInstrumenter) WroteToClient(n int) {
	i.next.WroteToClient(n)
}

func (i *loggingInstrumenter) ReadFromClient(n int) {
	i.next.ReadFromClient(n)
}

func (i *loggingInstrumenter) StartedRequest(method, path string) {
	i.next.StartedRequest(method, path)
}

func (i *loggingInstrumenter) ConnectionClosed(reason string) {
	switch reason {
	case "slow-client-read", "slow-client-write":
		i.logger.Warn("closing slow client", zap.String("reason", reason))
	case "drain-exceeded":
		i.logger.Warn("closing connection after drain overflow", zap.String("reason", reason))
	default:
		i.logger.Debug("connection closed", zap.String("reason", reason))
	}
	i.next.ConnectionClosed(reason)
}
