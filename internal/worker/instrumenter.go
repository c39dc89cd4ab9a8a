package worker

// Instrumenter receives the named lifecycle events a server operator can
// hook metrics or logging into.
type Instrumenter interface {
	AcceptedConnection(remoteAddr string)
	BadRequest(err error)
	ChunkedRequest()
	ChunkedResponse()
	WroteToClient(n int)
	ReadFromClient(n int)
	StartedRequest(method, path string)
	ConnectionClosed(reason string)
}

// NoopInstrumenter discards every event; the zero value is ready to use.
type NoopInstrumenter struct{}

func (NoopInstrumenter) AcceptedConnection(string)     {}
func (NoopInstrumenter) BadRequest(error)              {}
func (NoopInstrumenter) ChunkedRequest()                {}
func (NoopInstrumenter) ChunkedResponse()               {}
func (NoopInstrumenter) WroteToClient(int)              {}
func (NoopInstrumenter) ReadFromClient(int)             {}
func (NoopInstrumenter) StartedRequest(string, string)  {}
func (NoopInstrumenter) ConnectionClosed(string)        {}
