package repositories

import (
	"context"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserQuery filters the admin user listing.
type UserQuery struct {
	Search string
	Role   permissions.Role
	Page   int
	Limit  int
}

// ProfileUpdate holds the self-editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Name                 *string
	Phone                *string
	Bio                  *string
	Avatar               *string
	CoverPhoto           *string
	NotificationSettings *models.NotificationSettings
	PrivacySettings      *models.PrivacySettings
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// CreateIfAbsent inserts user unless a profile with the same id exists.
	// It never modifies an existing row.
	CreateIfAbsent(ctx context.Context, user *models.User) (bool, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListUsers(ctx context.Context, q UserQuery) ([]models.User, int64, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)
	ListIDsByRole(ctx context.Context, role permissions.Role) ([]string, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error
	SetPresence(ctx context.Context, id string, online bool, at time.Time) error
	SetRole(ctx context.Context, id string, role permissions.Role) error
	SetSuspended(ctx context.Context, id string, suspended bool) error
	IncrementPostsCount(ctx context.Context, id string, delta int) error
	IncrementFriendsCount(ctx context.Context, id string, delta int) error
	CountUsers(ctx context.Context) (total int64, online int64, err error)
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) CreateIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(user)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, normalize(err)
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&users).Error
	return users, err
}

func (r *PostgresUserRepository) ListUsers(ctx context.Context, q UserQuery) ([]models.User, int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.User{})
	if q.Search != "" {
		like := "%" + q.Search + "%"
		tx = tx.Where("LOWER(name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?)", like, like)
	}
	if q.Role != "" {
		tx = tx.Where("role = ?", q.Role)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	err := tx.Order("created_at DESC").Offset((q.Page - 1) * q.Limit).Limit(q.Limit).Find(&users).Error
	return users, total, err
}

// SearchUsers searches for users by name or email
func (r *PostgresUserRepository) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	var users []models.User
	like := "%" + query + "%"
	err := r.db.WithContext(ctx).
		Where("is_suspended = false AND (LOWER(name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?))", like, like).
		Limit(limit).Find(&users).Error
	return users, err
}

func (r *PostgresUserRepository) ListIDsByRole(ctx context.Context, role permissions.Role) ([]string, error) {
	tx := r.db.WithContext(ctx).Model(&models.User{}).Where("is_suspended = false")
	if role != "" {
		tx = tx.Where("role = ?", role)
	}
	var ids []string
	err := tx.Pluck("id", &ids).Error
	return ids, err
}

func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
			return normalize(err)
		}
		columns := upd.Apply(&user)
		if len(columns) == 0 {
			return nil
		}
		return tx.Model(&user).Select(columns).Updates(&user).Error
	})
}

// Apply copies the set fields onto user and returns the touched columns.
func (upd ProfileUpdate) Apply(user *models.User) []string {
	var columns []string
	if upd.Name != nil {
		user.Name = *upd.Name
		columns = append(columns, "name")
	}
	if upd.Phone != nil {
		user.Phone = *upd.Phone
		columns = append(columns, "phone")
	}
	if upd.Bio != nil {
		user.Bio = *upd.Bio
		columns = append(columns, "bio")
	}
	if upd.Avatar != nil {
		user.Avatar = *upd.Avatar
		columns = append(columns, "avatar")
	}
	if upd.CoverPhoto != nil {
		user.CoverPhoto = *upd.CoverPhoto
		columns = append(columns, "cover_photo")
	}
	if upd.NotificationSettings != nil {
		user.NotificationSettings = *upd.NotificationSettings
		columns = append(columns, "notification_settings")
	}
	if upd.PrivacySettings != nil {
		user.PrivacySettings = *upd.PrivacySettings
		columns = append(columns, "privacy_settings")
	}
	return columns
}

func (r *PostgresUserRepository) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"is_online": online, "last_active": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) SetRole(ctx context.Context, id string, role permissions.Role) error {
	return r.updateColumn(ctx, id, "role", role)
}

func (r *PostgresUserRepository) SetSuspended(ctx context.Context, id string, suspended bool) error {
	return r.updateColumn(ctx, id, "is_suspended", suspended)
}

func (r *PostgresUserRepository) IncrementPostsCount(ctx context.Context, id string, delta int) error {
	return r.updateColumn(ctx, id, "posts_count", gorm.Expr("GREATEST(posts_count + ?, 0)", delta))
}

func (r *PostgresUserRepository) IncrementFriendsCount(ctx context.Context, id string, delta int) error {
	return r.updateColumn(ctx, id, "friends_count", gorm.Expr("GREATEST(friends_count + ?, 0)", delta))
}

func (r *PostgresUserRepository) CountUsers(ctx context.Context) (int64, int64, error) {
	var total, online int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("is_online = true").Count(&online).Error; err != nil {
		return 0, 0, err
	}
	return total, online, nil
}

func (r *PostgresUserRepository) updateColumn(ctx context.Context, id, column string, value interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
