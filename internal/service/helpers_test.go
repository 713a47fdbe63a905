package service

import (
	"encoding/hex"

	"github.com/telhawk-systems/userrelay/internal/secret"
)

func hexOf(b secret.Bytes) string {
	return hex.EncodeToString(b.Reveal())
}
