package models

import (
	"time"
)

const UserTable = "users"

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleStudent Role = "STUDENT"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleStudent }

type User struct {
	ID       uint   `gorm:"column:user_id;primaryKey;autoIncrement" json:"userId"`
	Username string `gorm:"uniqueIndex;size:100;not null" json:"username"`
	// bcrypt 哈希，不下发给前端
	Password  string    `gorm:"column:password;size:255;not null" json:"-"`
	FullName  string    `gorm:"size:255;not null" json:"fullName"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role      Role      `gorm:"size:20;not null;index" json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (User) TableName() string { return UserTable }

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
