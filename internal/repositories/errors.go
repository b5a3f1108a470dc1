package repositories

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrInvalidID     = errors.New("invalid id format")
)

// normalize maps driver-specific "no rows" errors onto ErrNotFound.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

var (
	_ UserRepository       = (*PostgresUserRepository)(nil)
	_ PostRepository       = (*MongoPostRepository)(nil)
	_ CommentRepository    = (*PostgresCommentRepository)(nil)
	_ LikeRepository       = (*PostgresLikeRepository)(nil)
	_ SavedPostRepository  = (*PostgresSavedPostRepository)(nil)
	_ FriendshipRepository = (*PostgresFriendshipRepository)(nil)
	_ ChatRepository       = (*MongoChatRepository)(nil)
)
