package models

import "time"

type Notification struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"userID" gorm:"not null;index"`
	User   User `json:"user" gorm:"foreignKey:UserID"`

	Type    string `json:"type" gorm:"size:32;index"` // payment_verified, booking_cancelled, refund_issued, dispute_resolved, ...
	Title   string `json:"title" gorm:"size:100"`
	Message string `json:"message" gorm:"size:500"`

	// Reference data
	RefType string `json:"refType" gorm:"size:32"` // booking, refund, dispute
	RefID   uint   `json:"refID"`

	IsRead    bool       `json:"isRead" gorm:"default:false"`
	CreatedAt time.Time  `json:"createdAt"`
	ReadAt    *time.Time `json:"readAt"`
}
