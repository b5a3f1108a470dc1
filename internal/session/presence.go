package session

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
)

// PresenceMirror copies online state to a store that Firestore-native
// clients listen on directly.
type PresenceMirror interface {
	SetPresence(ctx context.Context, uid string, online bool, at time.Time) error
}

type FirestorePresence struct {
	client *firestore.Client
}

func NewFirestorePresence(client *firestore.Client) *FirestorePresence {
	return &FirestorePresence{client: client}
}

func (p *FirestorePresence) SetPresence(ctx context.Context, uid string, online bool, at time.Time) error {
	_, err := p.client.Collection("presence").Doc(uid).Set(ctx, map[string]interface{}{
		"isOnline":   online,
		"lastActive": at,
	}, firestore.MergeAll)
	return err
}
