// Package party manages customer/supplier entities and their balance
// aggregates.
package party

import (
	"strings"
	"time"
)

// Party captures one customer or supplier. For parties materialized from
// inbound remote records the id is the remote owner identifier and the
// display name defaults to that identifier until the user renames it.
type Party struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	OwnerID     string    `gorm:"column:owner_id;size:190;not null;index:idx_parties_owner"`
	DisplayName string    `gorm:"column:display_name;size:320;not null"`
	Phone       string    `gorm:"column:phone;size:32"`
	Balance     int64     `gorm:"column:balance;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing parties.
func (Party) TableName() string {
	return "parties"
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
