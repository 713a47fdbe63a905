package cmd

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/userrelay/internal/envelope"
	"github.com/telhawk-systems/userrelay/internal/models"
	"github.com/telhawk-systems/userrelay/internal/payload"
	"github.com/telhawk-systems/userrelay/internal/secret"
)

var sealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Encrypt a JSON document into an envelope",
	Long: `Encrypt a JSON document under AES-256-GCM and print the hex envelope
the upstream source would serve.

The document comes from --input, or --fake N generates N fake users.
The key is --key (hex), derived from --passphrase with Argon2id, or
freshly generated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		fake, _ := cmd.Flags().GetInt("fake")
		seed, _ := cmd.Flags().GetInt64("seed")
		omitKey, _ := cmd.Flags().GetBool("omit-key")
		wrap, _ := cmd.Flags().GetBool("wrap")
		outPath, _ := cmd.Flags().GetString("out")

		p, err := printer(cmd)
		if err != nil {
			return err
		}

		var plaintext []byte
		switch {
		case input != "" && fake > 0:
			return errors.New("use either --input or --fake, not both")
		case input != "":
			plaintext, err = readInput(cmd, input)
			if err != nil {
				return err
			}
		case fake > 0:
			plaintext, err = json.Marshal(FakeUsers(fake, seed))
			if err != nil {
				return err
			}
		default:
			return errors.New("one of --input or --fake is required")
		}

		doc, err := payload.Parse(secret.NewBytes(plaintext))
		if err != nil {
			return fmt.Errorf("input is not sealable: %w", err)
		}
		records := doc.Records()

		key, err := resolveKey(cmd, p.Warn, true)
		if err != nil {
			return err
		}
		defer key.Wipe()

		iv, err := envelope.NewIV()
		if err != nil {
			return err
		}
		env, err := envelope.Seal(plaintext, key, iv)
		if err != nil {
			return fmt.Errorf("seal failed: %w", err)
		}

		fields := env.Export()
		if omitKey {
			fields[envelope.FieldKey] = ""
			p.Warn("Key omitted from envelope; pass it to execute/open with --key %s", hex.EncodeToString(key.Reveal()))
		}
		var body interface{} = fields
		if wrap {
			body = map[string]interface{}{"data": map[string]interface{}{"encrypted": fields}}
		}

		out := cmd.OutOrStdout()
		if outPath != "" {
			f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(body); err != nil {
			return err
		}
		if outPath != "" {
			p.Success("Sealed %d records into %s", records, outPath)
		}
		return nil
	},
}

// FakeUsers returns n users with deterministic data for a non-zero seed.
func FakeUsers(n int, seed int64) []models.User {
	faker := gofakeit.New(seed)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	users := make([]models.User, n)
	for i := range users {
		users[i] = models.User{
			ID:        int64(i + 1),
			Name:      faker.Name(),
			Email:     faker.Email(),
			Phone:     faker.Phone(),
			Company:   faker.Company(),
			CreatedAt: base.Add(time.Duration(faker.Number(0, 365*24)) * time.Hour),
		}
	}
	return users
}

// resolveKey picks the key from --key, --passphrase/--salt, or, when
// generate is set, a fresh random key. It returns the zero value when no
// key was requested and generate is false.
func resolveKey(cmd *cobra.Command, warn func(string, ...interface{}), generate bool) (secret.Bytes, error) {
	hexKey, _ := cmd.Flags().GetString("key")
	passphrase, _ := cmd.Flags().GetString("passphrase")
	saltHex, _ := cmd.Flags().GetString("salt")

	switch {
	case hexKey != "" && passphrase != "":
		return secret.Bytes{}, errors.New("use either --key or --passphrase, not both")
	case hexKey != "":
		raw, err := hex.DecodeString(hexKey)
		if err != nil {
			return secret.Bytes{}, fmt.Errorf("--key is not valid hex: %w", err)
		}
		if len(raw) != envelope.KeySize {
			return secret.Bytes{}, fmt.Errorf("--key must be %d bytes, got %d", envelope.KeySize, len(raw))
		}
		return secret.NewBytes(raw), nil
	case passphrase != "":
		var salt []byte
		if saltHex != "" {
			s, err := hex.DecodeString(saltHex)
			if err != nil {
				return secret.Bytes{}, fmt.Errorf("--salt is not valid hex: %w", err)
			}
			salt = s
		} else if generate {
			s, err := envelope.NewSalt()
			if err != nil {
				return secret.Bytes{}, err
			}
			salt = s
			warn("Derived key with new salt %s; keep it to reopen the envelope", hex.EncodeToString(salt))
		} else {
			return secret.Bytes{}, errors.New("--salt is required with --passphrase")
		}
		return envelope.DeriveKey(passphrase, salt)
	case generate:
		return envelope.NewKey()
	default:
		return secret.Bytes{}, nil
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(io.LimitReader(cmd.InOrStdin(), 16<<20))
	}
	return os.ReadFile(path)
}

func addKeyFlags(cmd *cobra.Command) {
	cmd.Flags().String("key", "", "hex AES-256 key (64 hex characters)")
	cmd.Flags().String("passphrase", "", "derive the key from a passphrase with Argon2id")
	cmd.Flags().String("salt", "", "hex salt for --passphrase")
}

func init() {
	sealCmd.Flags().String("input", "", "JSON document to seal (- for stdin)")
	sealCmd.Flags().Int("fake", 0, "seal N generated users instead of --input")
	sealCmd.Flags().Int64("seed", 0, "seed for --fake (0 picks a random seed)")
	sealCmd.Flags().Bool("omit-key", false, "leave the key out of the envelope")
	sealCmd.Flags().Bool("wrap", false, "wrap the envelope as {\"data\":{\"encrypted\":...}}")
	sealCmd.Flags().String("out", "", "write the envelope to a file instead of stdout")
	addKeyFlags(sealCmd)

	rootCmd.AddCommand(sealCmd)
}
