package memory

import (
	"context"
	"sync"
	"time"

	"collab-editor-be/internal/entity"
	"collab-editor-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type documentLog struct {
	updates []*entity.DocumentUpdate
	last    int64
}

// DocumentUpdateRepository keeps update logs in process. Logs expire after
// ttl without writes.
type DocumentUpdateRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
}

func NewDocumentUpdateRepository(ttl time.Duration) contract.DocumentUpdateRepository {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &DocumentUpdateRepository{
		cache: cache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (r *DocumentUpdateRepository) load(document string) *documentLog {
	if x, found := r.cache.Get(document); found {
		return x.(*documentLog)
	}
	return &documentLog{}
}

func (r *DocumentUpdateRepository) store(document string, log *documentLog) {
	r.cache.Set(document, log, r.ttl)
}

func (r *DocumentUpdateRepository) Append(ctx context.Context, update *entity.DocumentUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.load(update.Document)
	log.last++
	stamp(update, log.last)
	log.updates = append(log.updates, clone(update))
	r.store(update.Document, log)
	return nil
}

func (r *DocumentUpdateRepository) FindByDocument(ctx context.Context, document string) ([]*entity.DocumentUpdate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.load(document)
	out := make([]*entity.DocumentUpdate, len(log.updates))
	for i, u := range log.updates {
		out[i] = clone(u)
	}
	return out, nil
}

func (r *DocumentUpdateRepository) Count(ctx context.Context, document string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.load(document).updates)), nil
}

func (r *DocumentUpdateRepository) Compact(ctx context.Context, snapshot *entity.DocumentUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.load(snapshot.Document)
	log.last++
	snapshot.Snapshot = true
	stamp(snapshot, log.last)
	log.updates = []*entity.DocumentUpdate{clone(snapshot)}
	r.store(snapshot.Document, log)
	return nil
}

func (r *DocumentUpdateRepository) DeleteByDocument(ctx context.Context, document string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(document)
	return nil
}

func stamp(u *entity.DocumentUpdate, seq int64) {
	if u.Id == uuid.Nil {
		u.Id = uuid.New()
	}
	u.Sequence = seq
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
}

func clone(u *entity.DocumentUpdate) *entity.DocumentUpdate {
	c := *u
	c.Payload = append([]byte(nil), u.Payload...)
	return &c
}
