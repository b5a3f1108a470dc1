package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/linkup/backend/internal/models"
	"gorm.io/gorm"
)

// FriendshipRepository defines the interface for friendship data operations
type FriendshipRepository interface {
	// SendFriendRequest creates a pending request. A rejected request between
	// the same pair is reopened. ErrAlreadyExists when one is pending or the
	// pair are already friends.
	SendFriendRequest(ctx context.Context, req *models.FriendRequest) error
	GetFriendRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error)
	GetPendingForUser(ctx context.Context, userID string) ([]models.FriendRequest, error)
	GetFriendIDs(ctx context.Context, userID string) ([]string, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
	// UpdateStatus moves a pending request to status; false when the request
	// was no longer pending.
	UpdateStatus(ctx context.Context, id uint, status string) (bool, error)
	// DeleteFriendship removes an accepted friendship; false when none existed.
	DeleteFriendship(ctx context.Context, a, b string) (bool, error)
}

// PostgresFriendshipRepository implements FriendshipRepository for PostgreSQL
type PostgresFriendshipRepository struct {
	db *gorm.DB
}

func NewPostgresFriendshipRepository(db *gorm.DB) *PostgresFriendshipRepository {
	return &PostgresFriendshipRepository{db: db}
}

func pairScope(a, b string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a)
	}
}

func (r *PostgresFriendshipRepository) SendFriendRequest(ctx context.Context, req *models.FriendRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.FriendRequest
		err := tx.Scopes(pairScope(req.SenderID, req.ReceiverID)).First(&existing).Error
		switch {
		case err == nil:
			if existing.Status != models.FriendStatusRejected {
				return ErrAlreadyExists
			}
			existing.SenderID = req.SenderID
			existing.ReceiverID = req.ReceiverID
			existing.Status = models.FriendStatusPending
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			*req = existing
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			req.Status = models.FriendStatusPending
			return tx.Create(req).Error
		default:
			return err
		}
	})
}

func (r *PostgresFriendshipRepository) GetFriendRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, normalize(err)
	}
	return &req, nil
}

func (r *PostgresFriendshipRepository) GetPendingForUser(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	requests := []models.FriendRequest{}
	err := r.db.WithContext(ctx).Where("receiver_id = ? AND status = ?", userID, models.FriendStatusPending).
		Order("created_at DESC").Find(&requests).Error
	return requests, err
}

func (r *PostgresFriendshipRepository) GetFriendIDs(ctx context.Context, userID string) ([]string, error) {
	var rows []models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? OR receiver_id = ?) AND status = ?", userID, userID, models.FriendStatusAccepted).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].Other(userID))
	}
	return ids, nil
}

func (r *PostgresFriendshipRepository) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FriendRequest{}).Scopes(pairScope(a, b)).
		Where("status = ?", models.FriendStatusAccepted).Count(&count).Error
	return count > 0, err
}

func (r *PostgresFriendshipRepository) UpdateStatus(ctx context.Context, id uint, status string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.FriendRequest{}).
		Where("id = ? AND status = ?", id, models.FriendStatusPending).Update("status", status)
	return res.RowsAffected == 1, res.Error
}

func (r *PostgresFriendshipRepository) DeleteFriendship(ctx context.Context, a, b string) (bool, error) {
	res := r.db.WithContext(ctx).Scopes(pairScope(a, b)).
		Where("status = ?", models.FriendStatusAccepted).Delete(&models.FriendRequest{})
	return res.RowsAffected > 0, res.Error
}
