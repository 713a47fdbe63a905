package cmd

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/userrelay/common/logging"
	"github.com/telhawk-systems/userrelay/internal/envelope"
	"github.com/telhawk-systems/userrelay/internal/payload"
	"github.com/telhawk-systems/userrelay/internal/relay"
	"github.com/telhawk-systems/userrelay/internal/secret"
)

type openSummary struct {
	Success bool   `json:"success" yaml:"success"`
	Kind    string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Message string `json:"message" yaml:"message"`
	Records int    `json:"records" yaml:"records"`
	Bytes   int    `json:"bytes" yaml:"bytes"`
}

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Decrypt an envelope locally and summarize it",
	Long: `Run decode, decrypt and parse on an envelope file without contacting
the relay. Only a summary is printed unless --reveal is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("envelope")
		reveal, _ := cmd.Flags().GetBool("reveal")

		p, err := printer(cmd)
		if err != nil {
			return err
		}

		raw, err := readInput(cmd, path)
		if err != nil {
			return err
		}
		env, err := parseEnvelope(raw)
		if err != nil {
			return err
		}

		key, err := resolveKey(cmd, p.Warn, false)
		if err != nil {
			return err
		}
		var opts []relay.RunOption
		if !key.IsZero() {
			opts = append(opts, relay.WithKey(secret.NewString(hex.EncodeToString(key.Reveal()))))
			key.Wipe()
		}

		sink := &captureSink{keep: reveal}
		pipeline := relay.New(relay.WithLogger(logging.Discard()))
		res := pipeline.Run(cmd.Context(), staticSource{env: env}, sink, opts...)

		summary := openSummary{
			Success: res.Success,
			Kind:    string(res.Kind),
			Message: res.Message,
			Records: res.Records,
			Bytes:   res.Bytes,
		}
		if res.Success {
			summary.Message = "Envelope opened"
		}

		if handled, err := p.Structured(summary); handled {
			if err != nil {
				return err
			}
		} else if res.Success {
			p.Success("%s", summary.Message)
			p.Info("Records: %d", summary.Records)
			p.Info("Bytes:   %d", summary.Bytes)
		}

		if !res.Success {
			return fmt.Errorf("%s (%s)", res.Message, res.Kind)
		}
		if reveal {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(sink.plaintext))
			secret.Zero(sink.plaintext)
			return err
		}
		return nil
	},
}

// parseEnvelope accepts a bare envelope as well as the upstream shapes
// {"encrypted":{...}} and {"data":{"encrypted":{...}}} written by seal --wrap.
func parseEnvelope(raw []byte) (envelope.Envelope, error) {
	var shape struct {
		Data      json.RawMessage `json:"data"`
		Encrypted json.RawMessage `json:"encrypted"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return envelope.Envelope{}, fmt.Errorf("envelope is not valid JSON: %w", err)
	}

	if len(shape.Data) > 0 {
		var data struct {
			Encrypted json.RawMessage `json:"encrypted"`
		}
		if err := json.Unmarshal(shape.Data, &data); err != nil {
			return envelope.Envelope{}, fmt.Errorf("envelope data is not an object: %w", err)
		}
		if !isObject(data.Encrypted) {
			return envelope.Envelope{}, fmt.Errorf("envelope data has no encrypted object")
		}
		raw = data.Encrypted
	} else if isObject(shape.Encrypted) {
		raw = shape.Encrypted
	}

	var env envelope.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope.Envelope{}, fmt.Errorf("envelope is not valid JSON: %w", err)
	}
	return env, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

type staticSource struct {
	env envelope.Envelope
}

func (s staticSource) Fetch(context.Context) (*envelope.Envelope, error) {
	env := s.env
	return &env, nil
}

// captureSink stands in for the webhook. It copies the document only when
// the operator asked to see it.
type captureSink struct {
	keep      bool
	plaintext []byte
}

func (c *captureSink) Forward(_ context.Context, doc *payload.Document) error {
	if !c.keep {
		return nil
	}
	b, err := doc.MarshalJSON()
	if err != nil {
		return err
	}
	c.plaintext = append([]byte(nil), b...)
	return nil
}

func (c *captureSink) Clear(context.Context) error { return nil }

func init() {
	openCmd.Flags().String("envelope", "-", "envelope JSON file (- for stdin)")
	openCmd.Flags().Bool("reveal", false, "print the decrypted document")
	addKeyFlags(openCmd)

	rootCmd.AddCommand(openCmd)
}
