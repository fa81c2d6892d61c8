package models

import "time"

// PointsEntry one ledger award
type PointsEntry struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Identity    string    `gorm:"type:varchar(128);index;not null" json:"identity"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Reason      string    `gorm:"type:varchar(64)" json:"reason"`
	ReferenceID string    `gorm:"type:varchar(512)" json:"reference_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specify table name
func (PointsEntry) TableName() string {
	return "tb_points_entry"
}
