package contract

import (
	"context"

	"collab-editor-be/internal/entity"
)

type DocumentUpdateRepository interface {
	// Append stores update at the end of its document's log and fills in
	// Sequence and CreatedAt.
	Append(ctx context.Context, update *entity.DocumentUpdate) error
	// FindByDocument returns the log in sequence order.
	FindByDocument(ctx context.Context, document string) ([]*entity.DocumentUpdate, error)
	Count(ctx context.Context, document string) (int64, error)
	// Compact replaces the whole log with snapshot.
	Compact(ctx context.Context, snapshot *entity.DocumentUpdate) error
	DeleteByDocument(ctx context.Context, document string) error
}
