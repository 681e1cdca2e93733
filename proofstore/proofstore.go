// Package proofstore persists accepted proof-of-payment files and returns the
// reference recorded in the client's proof history.
package proofstore

import (
	"context"
	"fmt"
	"mime"
	"strings"
)

type Store interface {
	Put(ctx context.Context, clientKey, proofID string, data []byte, mimeType string) (string, error)
}

// BuildKey returns the object name of a proof: proofs/<digits>/<proofID><ext>.
func BuildKey(clientKey, proofID, mimeType string) string {
	return fmt.Sprintf("proofs/%s/%s%s", strings.TrimPrefix(clientKey, "+"), sanitize(proofID), extension(mimeType))
}

func extension(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
