package model

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	CredentialHash string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

type UserCreateRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (p *UserCreateRequest) Validate() error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Name = strings.TrimSpace(p.Name)
	if p.Email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return errors.New("email is invalid")
	}
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
