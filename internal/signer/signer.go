// Package signer derives and verifies the keyed signatures that stand in for
// a login session on external links. Possession of a valid link is the only
// proof of authorization for the lifetime of the acta; there is deliberately
// no expiry or nonce (see DESIGN.md).
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"net/url"
)

// Purposes partition the signature space. A signature minted for one purpose
// never verifies under another, even with identical identifiers.
const (
	PurposeParticipantApproval = "participant-approval"
	PurposeAttachmentDownload  = "attachment-download"
)

// Signer holds the server-side secret. Construct it from explicit config so
// key lifecycle stays visible and tests can use fixed keys.
type Signer struct {
	key []byte
}

func New(key string) *Signer {
	return &Signer{key: []byte(key)}
}

// Sign computes a hex HMAC-SHA256 over the purpose and identifiers. Each
// value is length-prefixed before hashing so no pair of inputs can collide by
// concatenation ("ab","c" vs "a","bc").
func (s *Signer) Sign(purpose string, ids ...string) string {
	mac := hmac.New(sha256.New, s.key)
	writeField(mac, purpose)
	for _, id := range ids {
		writeField(mac, id)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares in constant time.
func (s *Signer) Verify(signature, purpose string, ids ...string) bool {
	expected := s.Sign(purpose, ids...)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func writeField(mac hash.Hash, v string) {
	_, _ = fmt.Fprintf(mac, "%d:%s", len(v), v)
}

// ApprovalLink builds the public participant-approval URL.
func (s *Signer) ApprovalLink(base, actaID, participantID string) string {
	sig := s.Sign(PurposeParticipantApproval, actaID, participantID)
	return fmt.Sprintf("%s/approve?acta=%s&participant=%s&signature=%s",
		base, url.QueryEscape(actaID), url.QueryEscape(participantID), sig)
}

// DocumentLink builds the public attachment-download URL. The document id is
// part of the signed scope so a link for one document cannot be edited into a
// link for another.
func (s *Signer) DocumentLink(base, actaID, participantID, docID string) string {
	sig := s.Sign(PurposeAttachmentDownload, actaID, participantID, docID)
	return fmt.Sprintf("%s/documents?acta=%s&participant=%s&doc=%s&signature=%s",
		base, url.QueryEscape(actaID), url.QueryEscape(participantID), url.QueryEscape(docID), sig)
}
