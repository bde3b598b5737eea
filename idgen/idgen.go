// Package idgen produces identifiers for pricewatch entities.
//
// Product IDs are deterministic: the same product URL always maps to the
// same ID, so repeated track requests converge on one document. Everything
// else (subscriptions, comparison entries) uses time-sortable UUIDv7 with a
// type prefix.
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/google/uuid"
)

// asinPattern matches the 10-character Amazon product identifier embedded in
// /dp/ and /gp/product/ style URLs.
var asinPattern = regexp.MustCompile(`(?:/dp/|/gp/product/|/product/)([A-Z0-9]{10})(?:[/?]|$)`)

// ProductID derives a stable product identifier from a product page URL.
// Amazon URLs yield "AMZ-<ASIN>"; anything else falls back to a content hash
// of the URL itself.
func ProductID(url string) string {
	if m := asinPattern.FindStringSubmatch(url); m != nil {
		return "AMZ-" + m[1]
	}
	sum := sha256.Sum256([]byte(url))
	return "URL-" + hex.EncodeToString(sum[:8])
}

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// NewSubscription produces a subscription ID ("sub_...").
var NewSubscription = Prefixed("sub_", UUIDv7())

// NewEntry produces a comparison entry ID ("cmp_...").
var NewEntry = Prefixed("cmp_", UUIDv7())
