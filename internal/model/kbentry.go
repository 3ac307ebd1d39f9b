package model

import (
	"time"

	"gorm.io/gorm"
)

// KBEntry is one approved knowledge base entry. Every entry exists in three
// places at once: this record store row, one block in the flat text export,
// and one embedded vector in the index, all keyed by KBID.
type KBEntry struct {
	ID           uint64   `json:"-" bson:"-" gorm:"primaryKey;autoIncrement;comment:自增ID"`
	KBID         string   `json:"kb_id" bson:"kb_id" gorm:"size:32;not null;uniqueIndex:uk_kb_id;comment:条目ID"`
	UseCase      string   `json:"use_case" bson:"use_case" gorm:"size:512;not null;comment:问题场景"`
	RequiredInfo []string `json:"required_info" bson:"required_info" gorm:"serializer:json;comment:必填信息槽位"`
	Questions    []string `json:"questions" bson:"questions" gorm:"serializer:json;comment:槽位提问话术"`
	// SolutionSteps is the admin curated fix, shown to users verbatim.
	SolutionSteps string `json:"solution_steps" bson:"solution_steps" gorm:"type:text;not null;comment:解决步骤"`
	// SourceIncidentID records which incident this entry was approved from.
	SourceIncidentID string `json:"source_incident_id,omitempty" bson:"source_incident_id,omitempty" gorm:"size:32;comment:来源事件号"`

	CreatedAt int64 `json:"created_at" bson:"created_at" gorm:"autoCreateTime:milli;comment:创建时间(时间戳)"`
	UpdatedAt int64 `json:"updated_at" bson:"updated_at" gorm:"autoUpdateTime:milli;comment:更新时间(时间戳)"`
}

// KBEntryList contains a list of knowledge base entries.
type KBEntryList struct {
	TotalCount int64      `json:"totalCount"`
	Items      []*KBEntry `json:"items"`
}

// TableName returns the table name for GORM.
func (e *KBEntry) TableName() string {
	return "kb_entries"
}

// BeforeCreate sets the CreatedAt and UpdatedAt fields.
func (e *KBEntry) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now().UnixMilli()
	e.CreatedAt = now
	e.UpdatedAt = now
	return
}

// BeforeUpdate sets the UpdatedAt field.
func (e *KBEntry) BeforeUpdate(tx *gorm.DB) (err error) {
	e.UpdatedAt = time.Now().UnixMilli()
	return
}
