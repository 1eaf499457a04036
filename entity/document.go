package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SignStatus represents the signing state of a document
type SignStatus string

const (
	SignStatusUnsigned SignStatus = "unsigned"
	SignStatusSigned   SignStatus = "signed"
)

// CanTransitionTo reports whether the status may move to next.
// The only allowed transition is unsigned -> signed.
func (s SignStatus) CanTransitionTo(next SignStatus) bool {
	return s == SignStatusUnsigned && next == SignStatusSigned
}

// Document is the metadata record kept for every stored file.
// Path is identical to the object key in the blob store.
type Document struct {
	ID           uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	Path         string            `json:"path" gorm:"type:varchar(1024);not null;uniqueIndex"`
	OwnerID      string            `json:"owner_id" gorm:"type:varchar(255);not null;index"`
	Filename     string            `json:"filename" gorm:"type:varchar(512);not null"`
	ContentType  string            `json:"content_type" gorm:"type:varchar(255)"`
	SignStatus   SignStatus        `json:"sign_status" gorm:"type:varchar(16);not null;default:'unsigned'"`
	Size         *int64            `json:"size,omitempty"`
	Attributes   datatypes.JSONMap `json:"attributes,omitempty" gorm:"type:jsonb"`
	CreatedAt    time.Time         `json:"created_at" gorm:"not null;index"`
	LastModified time.Time         `json:"last_modified" gorm:"not null"`
}

func (d Document) Signed() bool {
	return d.SignStatus == SignStatusSigned
}

// MarshalJSON adds the boolean signed flag next to sign_status.
func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	return json.Marshal(struct {
		plain
		Signed bool `json:"signed"`
	}{plain(d), d.Signed()})
}
