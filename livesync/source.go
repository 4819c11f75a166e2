package livesync

import (
	"context"

	"github.com/imba3r/kedai/store"
)

// Snapshot is the full content of a collection at one point in time.
type Snapshot []store.CollectionItem

// CancelFunc stops a subscription. Calling it more than once is a no-op.
type CancelFunc func()

// Source is the remote collection store the manager mirrors. Paths are
// slash-separated collection keys; document keys are the collection key
// plus the identifier.
type Source interface {
	// Subscribe delivers the current snapshot of path, narrowed by sel, and
	// then one per change, in order, until cancelled. onError is called at
	// most once and ends delivery.
	Subscribe(ctx context.Context, path string, sel store.Selection, onSnapshot func(Snapshot), onError func(error)) (CancelFunc, error)
	// Append stores fields as a new document and returns the identifier the
	// store assigned.
	Append(ctx context.Context, path string, fields []byte) (string, error)
	// SetFields overwrites the named fields of an existing document.
	SetFields(ctx context.Context, key string, fields []byte) error
	// Put is SetFields that creates the document when missing.
	Put(ctx context.Context, key string, fields []byte) error
	Delete(ctx context.Context, key string) error
}
