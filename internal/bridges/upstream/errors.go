package upstream

import "errors"

// Domain errors for the upstream command stream.
var (
	// ErrMalformedCommand is returned by Decode when a payload is not a valid
	// command. The reader logs and skips such payloads.
	ErrMalformedCommand = errors.New("upstream: malformed command")

	// ErrUnknownCommandKind is returned when a command kind is not ON, OFF or COLOR.
	ErrUnknownCommandKind = errors.New("upstream: unknown command kind")

	// ErrConnectionLost marks a clean end-of-stream from the upstream peer.
	// It triggers a reconnect and never leaves the reader.
	ErrConnectionLost = errors.New("upstream: connection lost")

	// ErrReconnectExhausted ends the command stream after the configured
	// number of consecutive reconnect attempts failed.
	ErrReconnectExhausted = errors.New("upstream: reconnect attempts exhausted")

	// ErrTransport ends the command stream on a dial failure or a read error
	// other than a clean EOF (reset, refused, DNS failure).
	ErrTransport = errors.New("upstream: transport error")

	// ErrFrameTooLarge is returned when no closing brace arrives within
	// maxFrameSize bytes. The connection is dropped and re-established.
	ErrFrameTooLarge = errors.New("upstream: frame exceeds maximum size")

	// ErrReaderConsumed is yielded when Commands is called a second time.
	ErrReaderConsumed = errors.New("upstream: command stream already consumed")
)
