package services

import (
	"context"

	"github.com/anonto42/linkup/backend/internal/jobs"
	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
)

// ChatService handles direct messages between friends. A conversation is
// only readable by its two participants.
type ChatService struct {
	d Deps
}

func NewChatService(d Deps) *ChatService {
	return &ChatService{d: d}
}

// ChatQuery streams the newest messages between uid and peer. The
// friendship is checked on every fetch, so unfriending turns an open stream
// into a failed one.
func (s *ChatService) ChatQuery(uid, peer string, limit int) livequery.Query[models.ChatMessage] {
	chatID := models.ChatID(uid, peer)
	limit = clampLimit(limit, 50, 200)
	return livequery.Query[models.ChatMessage]{
		Stream: "chat",
		Topics: []string{livequery.ChatTopic(chatID), livequery.FriendsTopic(uid)},
		Fetch: func(ctx context.Context) ([]models.ChatMessage, error) {
			if err := s.checkFriends(ctx, uid, peer); err != nil {
				return nil, err
			}
			msgs, err := s.d.Chats.ListMessages(ctx, chatID, int64(limit))
			if err != nil {
				return nil, storeError(err, "messages")
			}
			return msgs, nil
		},
	}
}

func (s *ChatService) SubscribeToChat(uid, peer string, limit int, onData func(livequery.Snapshot[models.ChatMessage])) livequery.Unsubscribe {
	return livequery.Subscribe(s.d.Broker, s.ChatQuery(uid, peer, limit), onData)
}

func (s *ChatService) ListMessages(ctx context.Context, actor Actor, peer string, limit int) ([]models.ChatMessage, error) {
	return s.ChatQuery(actor.ID, peer, limit).Fetch(ctx)
}

func (s *ChatService) SendMessage(ctx context.Context, actor Actor, req models.SendMessageRequest) (*models.ChatMessage, error) {
	if err := authorize(actor, permissions.ChatWithUsers); err != nil {
		return nil, err
	}
	if req.RecipientID == actor.ID {
		return nil, apperrors.NewInvalidInputError("cannot message yourself")
	}
	if req.Type == "text" && req.Content == "" {
		return nil, apperrors.NewInvalidInputError("text messages need content")
	}
	if req.Type != "text" && req.MediaURL == "" {
		return nil, apperrors.NewInvalidInputError("media messages need a media_url")
	}
	if _, err := s.d.Users.GetUserByID(ctx, req.RecipientID); err != nil {
		return nil, storeError(err, "user")
	}
	if err := s.checkFriends(ctx, actor.ID, req.RecipientID); err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ChatID:      models.ChatID(actor.ID, req.RecipientID),
		SenderID:    actor.ID,
		RecipientID: req.RecipientID,
		Type:        req.Type,
		Content:     req.Content,
		MediaURL:    req.MediaURL,
	}
	if err := s.d.Chats.CreateMessage(ctx, msg); err != nil {
		return nil, storeError(err, "message")
	}
	preview := msg.Content
	if preview == "" {
		preview = "[" + msg.Type + "]"
	}
	s.d.Events.Emit(ctx, jobs.Event{
		Type:      jobs.MessageSent,
		ActorID:   actor.ID,
		SubjectID: req.RecipientID,
		TargetID:  msg.ChatID,
		Preview:   preview,
	})
	s.d.Broker.Publish(ctx, livequery.ChatTopic(msg.ChatID))
	return msg, nil
}

func (s *ChatService) checkFriends(ctx context.Context, a, b string) error {
	ok, err := s.d.Friends.AreFriends(ctx, a, b)
	if err != nil {
		return storeError(err, "friends")
	}
	if !ok {
		return apperrors.NewForbiddenError("you can only chat with friends")
	}
	return nil
}
