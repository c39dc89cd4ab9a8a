// Package embedhttp is an embeddable HTTP/1.1 server engine: a
// per-connection worker state machine, preamble parser, chunked and
// compressed body pipelines, a multipart/form-data parser with file
// upload policy, and a TLS framing adapter, wired behind a small
// listener/worker-pool Server type.
package embedhttp

import (
	"github.com/yourusername/embedhttp/internal/httpheader"
	"github.com/yourusername/embedhttp/internal/multipart"
	"github.com/yourusername/embedhttp/internal/reqres"
	"github.com/yourusername/embedhttp/internal/respstream"
	"github.com/yourusername/embedhttp/internal/worker"
)

// Request is the value handed to a Handler for each incoming HTTP
// request (spec §4.I).
type Request = reqres.Request

// ResponseWriter is the output stream handed to a Handler: writing to it
// commits the response preamble on first use.
type ResponseWriter = respstream.Writer

// FileInfo describes one staged (or discarded) multipart file upload.
type FileInfo = multipart.FileInfo

// Cookie is a parsed or outgoing HTTP cookie.
type Cookie = httpheader.Cookie

// SameSite mirrors the Set-Cookie SameSite attribute.
type SameSite = httpheader.SameSite

const (
	SameSiteDefault = httpheader.SameSiteDefault
	SameSiteLax     = httpheader.SameSiteLax
	SameSiteStrict  = httpheader.SameSiteStrict
	SameSiteNone    = httpheader.SameSiteNone
)

// Handler processes one request. See worker.Handler for the exact
// contract around committed responses and error propagation.
type Handler = worker.Handler

// Instrumenter receives the server's named lifecycle events.
type Instrumenter = worker.Instrumenter

// NoopInstrumenter discards every event.
type NoopInstrumenter = worker.NoopInstrumenter

// UploadPolicy decides what happens to a multipart file-upload part.
type UploadPolicy = multipart.UploadPolicy

const (
	PolicyAllow  = multipart.PolicyAllow
	PolicyReject = multipart.PolicyReject
	PolicyIgnore = multipart.PolicyIgnore
)

// HandlerException lets a Handler request a specific status/message be
// written if the response has not yet committed.
type HandlerException = worker.HandlerException
