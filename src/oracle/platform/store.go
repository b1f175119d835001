// Package platform persists governance documents into a
// document-oriented store under a single signing identity. The Store
// interface keeps the publisher testable against an in-memory
// implementation; production uses MySQL.
package platform

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned for missing documents or contracts.
	ErrNotFound = errors.New("platform: not found")
	// ErrRevisionConflict is returned when a replace loses the
	// optimistic-concurrency race on a document's revision.
	ErrRevisionConflict = errors.New("platform: revision conflict")
)

// WriteSignature carries the per-write entropy and the identity
// signature over the document digest.
type WriteSignature struct {
	Entropy   string
	Signature string
}

// Store is the document store surface the publisher writes through.
type Store interface {
	// Query returns documents of one type matching every where
	// clause, ordered and limited per opts.
	Query(ctx context.Context, docType string, where []Where, opts QueryOptions) ([]Document, error)
	// Create inserts a new document at revision 1.
	Create(ctx context.Context, doc Document, sig WriteSignature) error
	// Replace overwrites a document's data, guarded on prevRevision;
	// the stored revision becomes prevRevision+1.
	Replace(ctx context.Context, doc Document, prevRevision uint64, sig WriteSignature) error
	// Delete removes a document by type and id.
	Delete(ctx context.Context, docType, id string) error
	// FetchContract loads a registered contract schema.
	FetchContract(ctx context.Context, id string) (Contract, error)
	// RegisterContract stores a contract schema.
	RegisterContract(ctx context.Context, c Contract) error
	// Ping probes store connectivity.
	Ping(ctx context.Context) error
}
