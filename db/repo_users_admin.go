// db/repo_users_admin.go
package db

import (
	"context"

	"library_backend/models"
)

func (r *Repo) SetUserRole(ctx context.Context, userID uint, role models.Role) error {
	res := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("user_id = ?", userID).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repo) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&n).Error
	return n, err
}
