package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BaseModel defines the base model structure with common fields for the form package.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;column:id;not null;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

// BeforeCreate is a GORM hook that is triggered before a new record is created.
func (base *BaseModel) BeforeCreate(tx *gorm.DB) (err error) {
	if base.ID == uuid.Nil {
		base.ID, err = uuid.NewRandom()
		if err != nil {
			return
		}
	}
	base.CreatedAt = time.Now().UTC()
	base.UpdatedAt = time.Now().UTC()
	return
}

// BeforeUpdate is a GORM hook that is triggered before an existing record is updated.
func (base *BaseModel) BeforeUpdate(tx *gorm.DB) (err error) {
	base.UpdatedAt = time.Now().UTC()
	return
}

// FormRecord stores a validated form definition in the registry.
type FormRecord struct {
	BaseModel
	Key         string         `gorm:"type:varchar(255);column:form_key;not null;uniqueIndex" json:"formId"`  // Definition id used by clients
	Name        string         `gorm:"type:varchar(255);column:name;not null" json:"name"`                    // Human-readable form name
	Description string         `gorm:"type:text;column:description" json:"description,omitempty"`             // Optional description
	Definition  datatypes.JSON `gorm:"column:definition;not null" json:"definition"`                          // Normalized FormDefinition
	Version     string         `gorm:"type:varchar(50);column:version;not null;default:'1.0'" json:"version"` // Form version
	Active      bool           `gorm:"column:active;not null;default:true" json:"active"`                     // Whether new sessions may start
}

func (f *FormRecord) TableName() string {
	return "forms"
}

// SubmissionRecord is a submission accepted by the intake.
type SubmissionRecord struct {
	BaseModel
	FormRecordID uuid.UUID      `gorm:"type:uuid;column:form_record_id;not null;index" json:"formRecordId"`
	FormKey      string         `gorm:"type:varchar(255);column:form_key;not null;index" json:"formId"`
	Fields       datatypes.JSON `gorm:"column:fields;not null" json:"fieldSubmissions"` // []FieldSubmission as sent on the wire
}

func (s *SubmissionRecord) TableName() string {
	return "form_submissions"
}

// FormResponse is what clients receive when they fetch a form.
type FormResponse struct {
	ID         uuid.UUID       `json:"id"`
	FormID     string          `json:"formId"`
	Name       string          `json:"name"`
	Version    string          `json:"version"`
	Definition *FormDefinition `json:"definition"`
}

// FormSummary is the listing entry of a registered form.
type FormSummary struct {
	ID          uuid.UUID `json:"id"`
	FormID      string    `json:"formId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     string    `json:"version"`
	Active      bool      `json:"active"`
}
