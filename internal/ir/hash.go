package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for identity hashes.
// The version suffix leaves room for a future algorithm migration.
const (
	DomainWorker = "pamana/worker/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as hex.
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

var folder = cases.Fold()

// NormalizeName prepares a name part for identity comparison: NFC
// normalized, case folded, whitespace collapsed.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(folder.String(norm.NFC.String(s))), " ")
}

// SplitName tokenizes a full name. The first and last tokens become the
// first and last name and the tokens between them the middle name. ok is
// false for fewer than two tokens, which never identify a person.
func SplitName(full string) (first, middle, last string, ok bool) {
	tokens := strings.Fields(full)
	if len(tokens) < 2 {
		return "", "", "", false
	}
	return tokens[0], strings.Join(tokens[1:len(tokens)-1], " "), tokens[len(tokens)-1], true
}

// WorkerIdentity computes the identity hash of a person over the normalized
// (first, middle, last, category) tuple. Two occurrences of the same person
// hash equally regardless of case or spacing; a two-token name and a
// three-token name sharing first and last stay distinct.
func WorkerIdentity(first, middle, last, category string) (string, error) {
	data, err := MarshalCanonical(map[string]any{
		"category": NormalizeName(category),
		"first":    NormalizeName(first),
		"last":     NormalizeName(last),
		"middle":   NormalizeName(middle),
	})
	if err != nil {
		return "", fmt.Errorf("WorkerIdentity: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainWorker, data), nil
}

// MustWorkerIdentity is like WorkerIdentity but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustWorkerIdentity(first, middle, last, category string) string {
	h, err := WorkerIdentity(first, middle, last, category)
	if err != nil {
		panic(err)
	}
	return h
}
