package models

import "time"

const (
	ActivityLogin           = "login"
	ActivityLogout          = "logout"
	ActivityPasswordChanged = "password_changed"
	ActivitySessionCreated  = "session_created"
	ActivitySessionUpdated  = "session_updated"
	ActivitySessionDeleted  = "session_deleted"
	ActivityCapacityChanged = "capacity_changed"
	ActivityRefunded        = "enrollment_refunded"
	ActivityEmailResent     = "confirmation_resent"
)

// AdminActivity is an audit trail entry for operator actions.
type AdminActivity struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AdminID    uint      `gorm:"not null;index" json:"admin_id"`
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityType string    `gorm:"type:varchar(50)" json:"entity_type,omitempty"`
	EntityID   string    `gorm:"type:varchar(64)" json:"entity_id,omitempty"`
	Details    string    `gorm:"type:text" json:"details,omitempty"`
	IPAddress  string    `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AdminActivity) TableName() string {
	return "admin_activity_logs"
}
