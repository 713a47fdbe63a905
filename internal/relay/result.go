package relay

import (
	"log/slog"
	"time"

	"github.com/telhawk-systems/userrelay/common/logging"
)

// Operation names a pipeline entry point.
type Operation string

const (
	OperationExecute Operation = "execute"
	OperationClear   Operation = "clear"
)

// Stage names one step of a run.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageDecode  Stage = "decode"
	StageDecrypt Stage = "decrypt"
	StageParse   Stage = "parse"
	StageForward Stage = "forward"
	StageClear   Stage = "clear"
)

// Kind is the error category reported to callers.
type Kind string

const (
	KindFetch                Kind = "fetch_error"
	KindDecode               Kind = "decode_error"
	KindAuthenticationFailed Kind = "decrypt_authentication_failed"
	KindCryptoFailure        Kind = "decrypt_crypto_failure"
	KindParse                Kind = "parse_error"
	KindForward              Kind = "forward_error"
)

// Result is the outcome of one run. It never carries payload contents.
type Result struct {
	Success   bool          `json:"success"`
	Operation Operation     `json:"operation"`
	Message   string        `json:"message"`
	Kind      Kind          `json:"kind,omitempty"`
	Stage     Stage         `json:"stage,omitempty"`
	Records   int           `json:"records,omitempty"`
	Bytes     int           `json:"bytes,omitempty"`
	Duration  time.Duration `json:"-"`

	// Err is the underlying cause, for server-side logs only.
	Err error `json:"-"`
}

// LogAttrs returns the result as structured log attributes.
func (r Result) LogAttrs() []any {
	attrs := []any{
		logging.Operation(string(r.Operation)),
		slog.Bool("success", r.Success),
		logging.Duration(r.Duration),
	}
	if r.Success {
		if r.Operation == OperationExecute {
			attrs = append(attrs, logging.Records(r.Records), logging.Bytes(r.Bytes))
		}
		return attrs
	}
	return append(attrs,
		logging.Stage(string(r.Stage)),
		logging.Kind(string(r.Kind)),
		logging.Error(r.Err),
	)
}

var successMessages = map[Operation]string{
	OperationExecute: "Data processed successfully",
	OperationClear:   "Data cleared successfully",
}

var failureMessages = map[Kind]string{
	KindFetch:                "Failed to fetch encrypted data",
	KindDecode:               "Encrypted data is malformed",
	KindAuthenticationFailed: "Encrypted data failed authentication",
	KindCryptoFailure:        "Failed to decrypt data",
	KindParse:                "Decrypted data is not a valid document",
	KindForward:              "Failed to forward data",
}

// Message returns the generic user-facing message for k.
func (k Kind) Message() string {
	if m, ok := failureMessages[k]; ok {
		return m
	}
	return "Failed to process data"
}
