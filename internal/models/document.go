package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is an uploaded source file whose extracted data produced an invoice.
// Its ID is taken from the export so re-imports keep stable references.
type Document struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name           string `gorm:"size:255;not null" json:"name"`
	FilePath       string `gorm:"size:1024" json:"file_path,omitempty"`
	FileSize       int64  `json:"file_size"`
	FileType       string `gorm:"size:100" json:"file_type,omitempty"`
	Status         string `gorm:"size:50;index" json:"status"`
	OrganizationID string `gorm:"size:64" json:"organization_id,omitempty"`
	DepartmentID   string `gorm:"size:64" json:"department_id,omitempty"`
	UploadedByID   string `gorm:"size:64" json:"uploaded_by_id,omitempty"`

	Invoice *Invoice `gorm:"foreignKey:DocumentID" json:"invoice,omitempty"`
}

// BeforeCreate assigns a random ID when the document has none.
func (d *Document) BeforeCreate(_ *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
