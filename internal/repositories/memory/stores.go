package memory

// Stores is one of every in-memory repository, sharing nothing.
type Stores struct {
	Users         *UserStore
	Posts         *PostStore
	Comments      *CommentStore
	Likes         *LikeStore
	Saved         *SavedStore
	Friends       *FriendStore
	Notifications *NotificationStore
	Stories       *StoryStore
	Chats         *ChatStore
}

func NewStores() *Stores {
	return &Stores{
		Users:         NewUserStore(),
		Posts:         NewPostStore(),
		Comments:      NewCommentStore(),
		Likes:         NewLikeStore(),
		Saved:         NewSavedStore(),
		Friends:       NewFriendStore(),
		Notifications: NewNotificationStore(),
		Stories:       NewStoryStore(),
		Chats:         NewChatStore(),
	}
}
