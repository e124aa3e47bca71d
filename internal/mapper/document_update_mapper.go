package mapper

import (
	"collab-editor-be/internal/entity"
	"collab-editor-be/internal/model"

	"gorm.io/datatypes"
)

type DocumentUpdateMapper struct{}

func NewDocumentUpdateMapper() *DocumentUpdateMapper {
	return &DocumentUpdateMapper{}
}

func (m *DocumentUpdateMapper) ToEntity(u *model.DocumentUpdate) *entity.DocumentUpdate {
	if u == nil {
		return nil
	}
	return &entity.DocumentUpdate{
		Id:        u.Id,
		Document:  u.Document,
		Sequence:  u.Sequence,
		UserId:    u.UserId,
		Instance:  u.Instance,
		Snapshot:  u.Snapshot,
		Payload:   []byte(u.Payload),
		CreatedAt: u.CreatedAt,
	}
}

func (m *DocumentUpdateMapper) ToModel(u *entity.DocumentUpdate) *model.DocumentUpdate {
	if u == nil {
		return nil
	}
	return &model.DocumentUpdate{
		Id:        u.Id,
		Document:  u.Document,
		Sequence:  u.Sequence,
		UserId:    u.UserId,
		Instance:  u.Instance,
		Snapshot:  u.Snapshot,
		Payload:   datatypes.JSON(u.Payload),
		CreatedAt: u.CreatedAt,
	}
}

func (m *DocumentUpdateMapper) ToEntities(models []*model.DocumentUpdate) []*entity.DocumentUpdate {
	entities := make([]*entity.DocumentUpdate, len(models))
	for i, u := range models {
		entities[i] = m.ToEntity(u)
	}
	return entities
}
