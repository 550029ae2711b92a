// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package codegen generates activation codes.
package codegen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	// DefaultLength is the number of characters in a generated code.
	DefaultLength = 40
	// MinLength is the shortest code the generator will produce.
	MinLength = 32
)

// alphabet for activation codes (ASCII letters and digits).
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// maxByte is the largest multiple of len(alphabet) that fits in a byte.
// Random bytes at or above it are discarded so every character is equally likely.
const maxByte = 256 - (256 % len(alphabet))

// Generator produces random activation codes of a fixed length.
type Generator struct {
	length int
}

// New creates a generator. Lengths below MinLength are raised to MinLength.
func New(length int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	if length < MinLength {
		length = MinLength
	}
	return &Generator{length: length}
}

// Length returns the number of characters in each generated code.
func (g *Generator) Length() int {
	return g.length
}

// Generate returns a new code drawn from crypto/rand.
func (g *Generator) Generate() (string, error) {
	code := make([]byte, 0, g.length)
	buf := make([]byte, g.length)

	for len(code) < g.length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			code = append(code, alphabet[int(b)%len(alphabet)])
			if len(code) == g.length {
				break
			}
		}
	}

	return string(code), nil
}

// Hash computes the SHA256 hash of a code. Only hashes are persisted.
func Hash(code string) string {
	hash := sha256.Sum256([]byte(code))
	return hex.EncodeToString(hash[:])
}
