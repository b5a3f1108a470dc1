package repositories

import (
	"context"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoryRepository defines the interface for story operations. Stories live
// in MongoDB; seen markers and reactions in PostgreSQL.
type StoryRepository interface {
	CreateStory(ctx context.Context, story *models.Story) error
	GetStoryByID(ctx context.Context, id string) (*models.Story, error)
	GetActiveStories(ctx context.Context, now time.Time) ([]models.Story, error)
	DeleteExpiredStories(ctx context.Context, now time.Time) (int64, error)
	MarkSeen(ctx context.Context, storyID, userID string) error
	GetSeenStoryIDs(ctx context.Context, userID string, storyIDs []string) (map[string]bool, error)
	AddReaction(ctx context.Context, reaction *models.StoryReaction) error
}

type storyRepository struct {
	mongoCollection *mongo.Collection
	pgDB            *gorm.DB
}

func NewStoryRepository(mongoDB *mongo.Database, pgDB *gorm.DB) StoryRepository {
	return &storyRepository{
		mongoCollection: mongoDB.Collection("stories"),
		pgDB:            pgDB,
	}
}

func (r *storyRepository) CreateStory(ctx context.Context, story *models.Story) error {
	story.ID = primitive.NewObjectID()
	story.CreatedAt = time.Now()
	story.ExpiresAt = story.CreatedAt.Add(models.StoryLifetime)
	_, err := r.mongoCollection.InsertOne(ctx, story)
	return err
}

func (r *storyRepository) GetStoryByID(ctx context.Context, id string) (*models.Story, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	var story models.Story
	if err := r.mongoCollection.FindOne(ctx, bson.M{"_id": objID}).Decode(&story); err != nil {
		return nil, normalize(err)
	}
	return &story, nil
}

func (r *storyRepository) GetActiveStories(ctx context.Context, now time.Time) ([]models.Story, error) {
	filter := bson.M{"expires_at": bson.M{"$gt": now}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.mongoCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	stories := []models.Story{}
	if err = cursor.All(ctx, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

func (r *storyRepository) DeleteExpiredStories(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.mongoCollection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *storyRepository) MarkSeen(ctx context.Context, storyID, userID string) error {
	return r.pgDB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.StorySeen{StoryID: storyID, UserID: userID, SeenAt: time.Now()}).Error
}

func (r *storyRepository) GetSeenStoryIDs(ctx context.Context, userID string, storyIDs []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(storyIDs) == 0 {
		return result, nil
	}
	var seen []string
	err := r.pgDB.WithContext(ctx).Model(&models.StorySeen{}).
		Where("user_id = ? AND story_id IN ?", userID, storyIDs).Pluck("story_id", &seen).Error
	if err != nil {
		return nil, err
	}
	for _, id := range seen {
		result[id] = true
	}
	return result, nil
}

func (r *storyRepository) AddReaction(ctx context.Context, reaction *models.StoryReaction) error {
	reaction.CreatedAt = time.Now()
	return r.pgDB.WithContext(ctx).Create(reaction).Error
}
