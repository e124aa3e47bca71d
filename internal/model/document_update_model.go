package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DocumentUpdate struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Document  string         `gorm:"type:varchar(255);not null;index:idx_document_updates_document_seq,priority:1"`
	Sequence  int64          `gorm:"not null;index:idx_document_updates_document_seq,priority:2"`
	UserId    string         `gorm:"type:varchar(255)"`
	Instance  string         `gorm:"type:varchar(64)"`
	Snapshot  bool           `gorm:"not null;default:false"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (DocumentUpdate) TableName() string {
	return "document_updates"
}
