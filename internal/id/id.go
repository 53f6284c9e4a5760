package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultSlugLength is the length of public link slugs.
// 12 characters of the nanoid alphabet give ~71 bits of entropy, enough to
// make slugs unguessable while keeping invitation URLs short.
const DefaultSlugLength = 12

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "link-V1StGXR8_Z5jdHi6B-myT")
//
// NanoIDs are URL-friendly, compact (21 characters vs UUID's 36),
// and use a larger alphabet for better entropy per character.
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	// Use default NanoID (21 characters, URL-safe alphabet)
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
// Use this only when you're certain the system entropy is available,
// or when failure should crash the program (e.g., during initialization).
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// NewSlug creates a public, URL-safe link slug of the given length.
// Slugs carry no prefix; they are the opaque token guests see in the
// invitation URL. Uniqueness is enforced by the store's UNIQUE constraint,
// with collision retry handled by the caller.
func NewSlug(length int) (string, error) {
	if length <= 0 {
		length = DefaultSlugLength
	}
	slug, err := gonanoid.New(length)
	if err != nil {
		return "", fmt.Errorf("generate slug: %w", err)
	}
	return slug, nil
}
