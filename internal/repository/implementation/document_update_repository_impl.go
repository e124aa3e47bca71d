package implementation

import (
	"context"
	"errors"

	"collab-editor-be/internal/entity"
	"collab-editor-be/internal/mapper"
	"collab-editor-be/internal/model"
	"collab-editor-be/internal/repository/contract"
	"collab-editor-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DocumentUpdateRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentUpdateMapper
}

func NewDocumentUpdateRepository(db *gorm.DB) contract.DocumentUpdateRepository {
	return &DocumentUpdateRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentUpdateMapper(),
	}
}

func (r *DocumentUpdateRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DocumentUpdateRepositoryImpl) Append(ctx context.Context, update *entity.DocumentUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next, err := r.nextSequence(tx, update.Document)
		if err != nil {
			return err
		}
		update.Sequence = next
		return r.create(tx, update)
	})
}

// nextSequence locks the document's newest row so concurrent appends
// serialize on it.
func (r *DocumentUpdateRepositoryImpl) nextSequence(tx *gorm.DB, document string) (int64, error) {
	var last model.DocumentUpdate
	query := r.applySpecifications(tx.Clauses(clause.Locking{Strength: "UPDATE"}),
		specification.ByDocument{Document: document},
		specification.OrderBy{Field: "sequence", Desc: true},
	)
	if err := query.First(&last).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 1, nil
		}
		return 0, err
	}
	return last.Sequence + 1, nil
}

func (r *DocumentUpdateRepositoryImpl) create(tx *gorm.DB, update *entity.DocumentUpdate) error {
	if update.Id == uuid.Nil {
		update.Id = uuid.New()
	}
	m := r.mapper.ToModel(update)
	if err := tx.Create(m).Error; err != nil {
		return err
	}
	*update = *r.mapper.ToEntity(m)
	return nil
}

func (r *DocumentUpdateRepositoryImpl) FindByDocument(ctx context.Context, document string) ([]*entity.DocumentUpdate, error) {
	var models []*model.DocumentUpdate
	query := r.applySpecifications(r.db.WithContext(ctx),
		specification.ByDocument{Document: document},
		specification.OrderBy{Field: "sequence"},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *DocumentUpdateRepositoryImpl) Count(ctx context.Context, document string) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.DocumentUpdate{}),
		specification.ByDocument{Document: document},
	)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DocumentUpdateRepositoryImpl) Compact(ctx context.Context, snapshot *entity.DocumentUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next, err := r.nextSequence(tx, snapshot.Document)
		if err != nil {
			return err
		}
		if err := tx.Where("document = ?", snapshot.Document).Delete(&model.DocumentUpdate{}).Error; err != nil {
			return err
		}
		snapshot.Sequence = next
		snapshot.Snapshot = true
		return r.create(tx, snapshot)
	})
}

func (r *DocumentUpdateRepositoryImpl) DeleteByDocument(ctx context.Context, document string) error {
	return r.db.WithContext(ctx).Where("document = ?", document).Delete(&model.DocumentUpdate{}).Error
}
