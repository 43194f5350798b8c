package db

import (
	"context"
	"errors"
	"strings"

	"library_backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct{ DB *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

// WithTx runs fn inside one transaction; fn must only use the Repo it is handed.
// Any error (or panic) rolls everything back.
func (r *Repo) WithTx(ctx context.Context, fn func(tx *Repo) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{DB: tx})
	})
}

// forUpdate 行锁；SQLite 没有行锁，靠单连接串行
func (r *Repo) forUpdate(ctx context.Context) *gorm.DB {
	q := r.DB.WithContext(ctx)
	if r.DB.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// Users

func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	err := r.DB.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 预检查之后仍可能并发撞上唯一索引
		if ok, _ := r.UsernameExists(ctx, u.Username); ok {
			return ErrDuplicateUsername
		}
		return ErrDuplicateEmail
	}
	return err
}

// 按 ID 查
func (r *Repo) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "user_id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &u, nil
}

func (r *Repo) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &u, nil
}

// LockUser loads the user row for update. Issuing holds this lock so one user's
// quota check and insert cannot interleave with another issue for the same user.
func (r *Repo) LockUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.forUpdate(ctx).First(&u, "user_id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &u, nil
}

func (r *Repo) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&n).Error
	return n > 0, err
}

// EmailExists reports whether another user (not exceptID) already uses email.
func (r *Repo) EmailExists(ctx context.Context, email string, exceptID uint) (bool, error) {
	var n int64
	q := r.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", email)
	if exceptID != 0 {
		q = q.Where("user_id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

// ListUsers 按用户名排序；role 为空时返回全部
func (r *Repo) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	q := r.DB.WithContext(ctx).Model(&models.User{})
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var users []models.User
	if err := q.Order("username ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUserProfile changes full name, email and role; username is immutable.
func (r *Repo) UpdateUserProfile(ctx context.Context, u *models.User) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("user_id = ?", u.ID).
		Updates(map[string]any{
			"full_name": u.FullName,
			"email":     u.Email,
			"role":      u.Role,
		})
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUserByID refuses when any loan row (open or returned) references the user.
func (r *Repo) DeleteUserByID(ctx context.Context, id uint) error {
	return r.WithTx(ctx, func(tx *Repo) error {
		if _, err := tx.LockUser(ctx, id); err != nil {
			return err
		}
		var n int64
		if err := tx.DB.WithContext(ctx).Model(&models.IssuedBook{}).
			Where("user_id = ?", id).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrUserHasLoans
		}
		return tx.DB.WithContext(ctx).Delete(&models.User{}, "user_id = ?", id).Error
	})
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}
