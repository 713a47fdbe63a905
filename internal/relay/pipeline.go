// Package relay runs the fetch, decode, decrypt, parse and forward sequence
// for one encrypted envelope, and the companion clear operation.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telhawk-systems/userrelay/common/logging"
	"github.com/telhawk-systems/userrelay/internal/decrypt"
	"github.com/telhawk-systems/userrelay/internal/envelope"
	"github.com/telhawk-systems/userrelay/internal/payload"
	"github.com/telhawk-systems/userrelay/internal/secret"
)

// Source produces one envelope per call.
type Source interface {
	Fetch(ctx context.Context) (*envelope.Envelope, error)
}

// Sink receives forwarded documents and clear requests.
type Sink interface {
	Forward(ctx context.Context, doc *payload.Document) error
	Clear(ctx context.Context) error
}

type (
	DecodeFunc  func(envelope.Envelope) (*envelope.Decoded, error)
	DecryptFunc func(*envelope.Decoded) (secret.Bytes, error)
	ParseFunc   func(secret.Bytes) (*payload.Document, error)
)

// Pipeline is safe for concurrent use. Every run keeps its buffers local.
type Pipeline struct {
	decode   DecodeFunc
	decrypt  DecryptFunc
	parse    ParseFunc
	observer Observer
	logger   *logging.Logger
}

type Option func(*Pipeline)

func WithDecoder(f DecodeFunc) Option   { return func(p *Pipeline) { p.decode = f } }
func WithDecryptor(f DecryptFunc) Option { return func(p *Pipeline) { p.decrypt = f } }
func WithParser(f ParseFunc) Option     { return func(p *Pipeline) { p.parse = f } }

// WithObserver registers observers notified of stage timings and results.
func WithObserver(obs ...Observer) Option {
	return func(p *Pipeline) { p.observer = Observers(obs) }
}

func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New returns a pipeline wired to the envelope, decrypt and payload packages.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		decode:   envelope.Decode,
		decrypt:  decrypt.Open,
		parse:    payload.Parse,
		observer: Observers(nil),
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type runOptions struct {
	key secret.String
}

// RunOption adjusts a single run.
type RunOption func(*runOptions)

// WithKey replaces the envelope's key with a caller-supplied hex key.
// An empty key leaves the envelope untouched.
func WithKey(hexKey secret.String) RunOption {
	return func(o *runOptions) { o.key = hexKey }
}

// Run fetches one envelope from src, opens it and forwards the document to
// sink. The first failing stage ends the run; nothing is retried.
func (p *Pipeline) Run(ctx context.Context, src Source, sink Sink, opts ...RunOption) Result {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	start := time.Now()
	res := p.execute(ctx, src, sink, ro)
	res.Duration = time.Since(start)
	p.finish(ctx, res)
	return res
}

func (p *Pipeline) execute(ctx context.Context, src Source, sink Sink, ro runOptions) Result {
	const op = OperationExecute

	var env *envelope.Envelope
	err := p.stage(ctx, op, StageFetch, func() error {
		if src == nil {
			return errors.New("no envelope source configured")
		}
		var err error
		env, err = src.Fetch(ctx)
		if err == nil && env == nil {
			err = errors.New("source returned no envelope")
		}
		return err
	})
	if err != nil {
		return failure(op, StageFetch, err)
	}
	if !ro.key.IsZero() {
		replaced := env.WithKey(ro.key)
		env = &replaced
	}

	var decoded *envelope.Decoded
	err = p.stage(ctx, op, StageDecode, func() error {
		var err error
		decoded, err = p.decode(*env)
		if err == nil && decoded == nil {
			err = errors.New("decoder returned no envelope")
		}
		return err
	})
	if err != nil {
		return failure(op, StageDecode, err)
	}
	defer decoded.Wipe()

	var plaintext secret.Bytes
	err = p.stage(ctx, op, StageDecrypt, func() error {
		var err error
		plaintext, err = p.decrypt(decoded)
		return err
	})
	if err != nil {
		return failure(op, StageDecrypt, err)
	}
	defer plaintext.Wipe()

	var doc *payload.Document
	err = p.stage(ctx, op, StageParse, func() error {
		var err error
		doc, err = p.parse(plaintext)
		if err == nil && doc == nil {
			err = errors.New("parser returned no document")
		}
		return err
	})
	if err != nil {
		return failure(op, StageParse, err)
	}
	defer doc.Wipe()

	err = p.stage(ctx, op, StageForward, func() error {
		if sink == nil {
			return errors.New("no sink configured")
		}
		return sink.Forward(ctx, doc)
	})
	if err != nil {
		return failure(op, StageForward, err)
	}

	return Result{
		Success:   true,
		Operation: op,
		Message:   successMessages[op],
		Records:   doc.Records(),
		Bytes:     doc.Size(),
	}
}

// Clear asks sink to discard previously forwarded data. No envelope is
// fetched or opened.
func (p *Pipeline) Clear(ctx context.Context, sink Sink) Result {
	const op = OperationClear

	start := time.Now()
	res := Result{Success: true, Operation: op, Message: successMessages[op]}
	err := p.stage(ctx, op, StageClear, func() error {
		if sink == nil {
			return errors.New("no sink configured")
		}
		return sink.Clear(ctx)
	})
	if err != nil {
		res = failure(op, StageClear, err)
	}
	res.Duration = time.Since(start)
	p.finish(ctx, res)
	return res
}

// stage runs fn unless ctx is already done. An abandoned run fails at the
// stage it was about to enter.
func (p *Pipeline) stage(ctx context.Context, op Operation, stage Stage, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s not started: %w", stage, err)
	}
	start := time.Now()
	err := fn()
	p.observer.ObserveStage(op, stage, time.Since(start), err)
	return err
}

func (p *Pipeline) finish(ctx context.Context, res Result) {
	if res.Success {
		p.logger.InfoContext(ctx, "relay run completed", res.LogAttrs()...)
	} else {
		p.logger.WarnContext(ctx, "relay run failed", res.LogAttrs()...)
	}
	p.observer.ObserveResult(ctx, res)
}

func failure(op Operation, stage Stage, err error) Result {
	kind := Classify(stage, err)
	return Result{
		Operation: op,
		Message:   kind.Message(),
		Kind:      kind,
		Stage:     stage,
		Err:       err,
	}
}

// Classify maps a stage failure to its Kind. Decrypt failures are
// authentication failures only when the primitive rejected the tag.
func Classify(stage Stage, err error) Kind {
	switch stage {
	case StageFetch:
		return KindFetch
	case StageDecode:
		return KindDecode
	case StageDecrypt:
		if errors.Is(err, decrypt.ErrAuthenticationFailed) {
			return KindAuthenticationFailed
		}
		return KindCryptoFailure
	case StageParse:
		return KindParse
	default:
		return KindForward
	}
}
