package services

import (
	"context"
	"strconv"

	"github.com/anonto42/linkup/backend/internal/jobs"
	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
)

type FriendService struct {
	d Deps
}

func NewFriendService(d Deps) *FriendService {
	return &FriendService{d: d}
}

func (s *FriendService) FriendsQuery(uid string) livequery.Query[models.UserCompact] {
	return livequery.Query[models.UserCompact]{
		Stream: "friends",
		Topics: []string{livequery.FriendsTopic(uid)},
		Fetch:  func(ctx context.Context) ([]models.UserCompact, error) { return s.friends(ctx, uid, false) },
	}
}

func (s *FriendService) OnlineFriendsQuery(uid string) livequery.Query[models.UserCompact] {
	return livequery.Query[models.UserCompact]{
		Stream: "online_friends",
		Topics: []string{livequery.FriendsTopic(uid)},
		Fetch:  func(ctx context.Context) ([]models.UserCompact, error) { return s.friends(ctx, uid, true) },
	}
}

func (s *FriendService) RequestsQuery(uid string) livequery.Query[models.FriendRequestView] {
	return livequery.Query[models.FriendRequestView]{
		Stream: "friend_requests",
		Topics: []string{livequery.FriendsTopic(uid)},
		Fetch:  func(ctx context.Context) ([]models.FriendRequestView, error) { return s.pending(ctx, uid) },
	}
}

func (s *FriendService) SubscribeToFriends(uid string, onData func(livequery.Snapshot[models.UserCompact])) livequery.Unsubscribe {
	return livequery.Subscribe(s.d.Broker, s.FriendsQuery(uid), onData)
}

func (s *FriendService) SubscribeToOnlineFriends(uid string, onData func(livequery.Snapshot[models.UserCompact])) livequery.Unsubscribe {
	return livequery.Subscribe(s.d.Broker, s.OnlineFriendsQuery(uid), onData)
}

func (s *FriendService) SubscribeToRequests(uid string, onData func(livequery.Snapshot[models.FriendRequestView])) livequery.Unsubscribe {
	return livequery.Subscribe(s.d.Broker, s.RequestsQuery(uid), onData)
}

func (s *FriendService) ListFriends(ctx context.Context, uid string) ([]models.UserCompact, error) {
	return s.friends(ctx, uid, false)
}

func (s *FriendService) ListPending(ctx context.Context, uid string) ([]models.FriendRequestView, error) {
	return s.pending(ctx, uid)
}

func (s *FriendService) friends(ctx context.Context, uid string, onlineOnly bool) ([]models.UserCompact, error) {
	ids, err := s.d.Friends.GetFriendIDs(ctx, uid)
	if err != nil {
		return nil, storeError(err, "friends")
	}
	if len(ids) == 0 {
		return []models.UserCompact{}, nil
	}
	users, err := s.d.Users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storeError(err, "users")
	}
	out := make([]models.UserCompact, 0, len(users))
	for i := range users {
		c := users[i].ToCompact()
		if onlineOnly && !c.IsOnline {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *FriendService) pending(ctx context.Context, uid string) ([]models.FriendRequestView, error) {
	reqs, err := s.d.Friends.GetPendingForUser(ctx, uid)
	if err != nil {
		return nil, storeError(err, "friend requests")
	}
	senders := make([]string, len(reqs))
	for i := range reqs {
		senders[i] = reqs[i].SenderID
	}
	cards, err := compactUsers(ctx, s.d.Users, senders)
	if err != nil {
		return nil, storeError(err, "users")
	}
	out := make([]models.FriendRequestView, len(reqs))
	for i := range reqs {
		out[i] = models.FriendRequestView{FriendRequest: reqs[i], Sender: cards[reqs[i].SenderID]}
	}
	return out, nil
}

func (s *FriendService) SendRequest(ctx context.Context, actor Actor, receiverID string) (*models.FriendRequest, error) {
	if err := authorize(actor, permissions.SendFriendRequests); err != nil {
		return nil, err
	}
	if receiverID == actor.ID {
		return nil, apperrors.NewInvalidInputError("cannot send a friend request to yourself")
	}
	if _, err := s.d.Users.GetUserByID(ctx, receiverID); err != nil {
		return nil, storeError(err, "user")
	}
	req := &models.FriendRequest{SenderID: actor.ID, ReceiverID: receiverID}
	if err := s.d.Friends.SendFriendRequest(ctx, req); err != nil {
		return nil, storeError(err, "friend request")
	}
	s.d.Events.Emit(ctx, jobs.Event{
		Type:      jobs.FriendRequested,
		ActorID:   actor.ID,
		SubjectID: receiverID,
		TargetID:  strconv.FormatUint(uint64(req.ID), 10),
	})
	s.d.Broker.Publish(ctx, livequery.FriendsTopic(receiverID), livequery.FriendsTopic(actor.ID))
	return req, nil
}

// Respond accepts or rejects a pending request addressed to actor.
func (s *FriendService) Respond(ctx context.Context, actor Actor, requestID uint, status string) (*models.FriendRequest, error) {
	if status != models.FriendStatusAccepted && status != models.FriendStatusRejected {
		return nil, apperrors.NewInvalidInputError("status must be accepted or rejected")
	}
	req, err := s.d.Friends.GetFriendRequestByID(ctx, requestID)
	if err != nil {
		return nil, storeError(err, "friend request")
	}
	if req.ReceiverID != actor.ID {
		return nil, apperrors.NewForbiddenError("you can only respond to requests sent to you")
	}
	updated, err := s.d.Friends.UpdateStatus(ctx, requestID, status)
	if err != nil {
		return nil, storeError(err, "friend request")
	}
	if !updated {
		return nil, apperrors.NewConflictError("friend request is no longer pending")
	}
	req.Status = status

	if status == models.FriendStatusAccepted {
		s.d.Events.Emit(ctx, jobs.Event{Type: jobs.FriendAccepted, ActorID: actor.ID, SubjectID: req.SenderID})
	}
	s.d.Broker.Publish(ctx, livequery.FriendsTopic(req.SenderID), livequery.FriendsTopic(actor.ID))
	return req, nil
}

func (s *FriendService) Unfriend(ctx context.Context, actor Actor, otherID string) error {
	removed, err := s.d.Friends.DeleteFriendship(ctx, actor.ID, otherID)
	if err != nil {
		return storeError(err, "friendship")
	}
	if !removed {
		return apperrors.NewNotFoundError("friendship")
	}
	s.d.Events.Emit(ctx, jobs.Event{Type: jobs.FriendRemoved, ActorID: actor.ID, SubjectID: otherID})
	s.d.Broker.Publish(ctx, livequery.FriendsTopic(otherID), livequery.FriendsTopic(actor.ID))
	return nil
}
