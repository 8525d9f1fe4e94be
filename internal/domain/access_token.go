package domain

import "time"

type AccessToken struct {
	ID        int64
	TokenHash string
	UserID    int64
	Abilities string
	ExpiresAt *time.Time
}

type User struct {
	ID         int64
	FirstName  string
	LastName   string
	MiddleName *string
	Username   string
	Email      *string
	Phone      *string
}

func (u User) FullName() string {
	name := u.FirstName
	if u.MiddleName != nil && *u.MiddleName != "" {
		name += " " + *u.MiddleName
	}
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}
