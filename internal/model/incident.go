package model

import (
	"time"

	"gorm.io/gorm"
)

// ChatMessage is a single turn stored in an incident's conversation history.
type ChatMessage struct {
	Role      string `json:"role" bson:"role"`
	Content   string `json:"content" bson:"content"`
	Timestamp int64  `json:"timestamp" bson:"timestamp"`
}

// Incident represents one reported issue and everything collected about it.
type Incident struct {
	ID         uint64 `json:"-" bson:"-" gorm:"primaryKey;autoIncrement;comment:自增ID"`
	IncidentID string `json:"incident_id" bson:"incident_id" gorm:"size:32;not null;uniqueIndex:uk_incident_id;comment:事件号"`
	SessionID  string `json:"session_id" bson:"session_id" gorm:"size:64;index:idx_session_id;comment:会话ID"`
	UseCase    string `json:"use_case" bson:"use_case" gorm:"size:512;not null;comment:问题场景"`
	Status     Status `json:"status" bson:"status" gorm:"size:16;not null;index:idx_status;comment:状态"`

	// KBID is set once the incident is bound to a knowledge base entry,
	// either at match time or when an admin approves a new entry.
	KBID *string `json:"kb_id,omitempty" bson:"kb_id,omitempty" gorm:"size:32;index:idx_kb_id;comment:知识库条目ID"`

	RequiredInfo  []string          `json:"required_info" bson:"required_info" gorm:"serializer:json;comment:必填信息槽位"`
	CollectedInfo map[string]string `json:"collected_info" bson:"collected_info" gorm:"serializer:json;comment:已收集信息"`
	Questions     []string          `json:"questions" bson:"questions" gorm:"serializer:json;comment:槽位提问话术"`
	SolutionSteps string            `json:"solution_steps" bson:"solution_steps" gorm:"type:text;comment:解决步骤"`
	AdminMessage  string            `json:"admin_message" bson:"admin_message" gorm:"size:1024;comment:管理员留言"`

	IsNewKBEntry    bool `json:"is_new_kb_entry" bson:"is_new_kb_entry" gorm:"comment:是否全新场景"`
	NeedsKBApproval bool `json:"needs_kb_approval" bson:"needs_kb_approval" gorm:"index:idx_needs_approval;comment:是否待审批入库"`

	ConversationHistory []ChatMessage `json:"conversation_history" bson:"conversation_history" gorm:"serializer:json;comment:对话历史"`

	CreatedAt int64 `json:"created_at" bson:"created_at" gorm:"autoCreateTime:milli;comment:创建时间(时间戳)"`
	UpdatedAt int64 `json:"updated_at" bson:"updated_at" gorm:"autoUpdateTime:milli;comment:更新时间(时间戳)"`
}

// IncidentList contains a list of incidents and pagination info.
type IncidentList struct {
	TotalCount int64       `json:"totalCount"`
	Items      []*Incident `json:"items"`
}

// TableName returns the table name for GORM.
func (i *Incident) TableName() string {
	return "incidents"
}

// BeforeCreate sets the CreatedAt and UpdatedAt fields.
func (i *Incident) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now().UnixMilli()
	i.CreatedAt = now
	i.UpdatedAt = now
	return
}

// BeforeUpdate sets the UpdatedAt field.
func (i *Incident) BeforeUpdate(tx *gorm.DB) (err error) {
	i.UpdatedAt = time.Now().UnixMilli()
	return
}

// MissingInfo derives the required slots that have no collected answer yet,
// preserving the order of RequiredInfo. It is never stored.
func (i *Incident) MissingInfo() []string {
	missing := make([]string, 0, len(i.RequiredInfo))
	for _, slot := range i.RequiredInfo {
		if v, ok := i.CollectedInfo[slot]; !ok || v == "" {
			missing = append(missing, slot)
		}
	}
	return missing
}

// NextQuestion returns the prompt for the first unanswered slot. The second
// return value is false when every slot is filled.
func (i *Incident) NextQuestion() (string, bool) {
	for idx, slot := range i.RequiredInfo {
		if v, ok := i.CollectedInfo[slot]; ok && v != "" {
			continue
		}
		if idx < len(i.Questions) && i.Questions[idx] != "" {
			return i.Questions[idx], true
		}
		return "Please provide: " + slot, true
	}
	return "", false
}

// AppendHistory adds one message to the incident's conversation history.
func (i *Incident) AppendHistory(role, content string) {
	i.ConversationHistory = append(i.ConversationHistory, ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	})
}
