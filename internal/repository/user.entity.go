package repository

import (
	"time"

	"github.com/nimasrn/btc-invoice-gateway/internal/model"
)

type UserEntity struct {
	ID             int64     `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	Email          string    `db:"email"           gorm:"column:email;not null;uniqueIndex"`
	Name           string    `db:"name"            gorm:"column:name;not null"`
	CredentialHash string    `db:"credential_hash" gorm:"column:credential_hash;not null;default:''"`
	CreatedAt      time.Time `db:"created_at"      gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `db:"updated_at"      gorm:"column:updated_at;not null"`
}

func (UserEntity) TableName() string {
	return "users"
}

func toUserEntity(m *model.User) *UserEntity {
	if m == nil {
		return nil
	}
	return &UserEntity{
		ID:             m.ID,
		Email:          m.Email,
		Name:           m.Name,
		CredentialHash: m.CredentialHash,
		CreatedAt:      m.CreatedAt,
	}
}

func toUserModel(e *UserEntity) *model.User {
	if e == nil {
		return nil
	}
	return &model.User{
		ID:             e.ID,
		Email:          e.Email,
		Name:           e.Name,
		CredentialHash: e.CredentialHash,
		CreatedAt:      e.CreatedAt,
	}
}
