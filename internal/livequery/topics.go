package livequery

// Topic names shared by publishers and live queries.
const (
	TopicFeed = "posts:feed"
	// TopicStories fires after an expiry sweep.
	TopicStories = "stories"
)

func UserPostsTopic(uid string) string     { return "posts:user:" + uid }
func NotificationsTopic(uid string) string { return "notifications:" + uid }
func FriendsTopic(uid string) string       { return "friends:" + uid }
func ChatTopic(chatID string) string       { return "chat:" + chatID }
func ProfileTopic(uid string) string       { return "profile:" + uid }
func StoriesTopic(uid string) string       { return "stories:" + uid }

// PresenceTopics lists what a change to uid's card or online state touches:
// its own profile and the friend list of each friend.
func PresenceTopics(uid string, friends []string) []string {
	topics := make([]string, 0, len(friends)+1)
	topics = append(topics, ProfileTopic(uid))
	for _, f := range friends {
		topics = append(topics, FriendsTopic(f))
	}
	return topics
}

// StoryTopics lists the story rails that show uid's stories: uid's own and
// each friend's.
func StoryTopics(uid string, friends []string) []string {
	topics := make([]string, 0, len(friends)+1)
	topics = append(topics, StoriesTopic(uid))
	for _, f := range friends {
		topics = append(topics, StoriesTopic(f))
	}
	return topics
}
