// Package media validates uploads and forwards them to object storage or the
// Cloudinary CDN.
package media

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the purpose of an upload, chosen by the client.
type Kind string

const (
	KindAvatar Kind = "avatar"
	KindCover  Kind = "cover"
	KindPost   Kind = "post"
	KindStory  Kind = "story"
	KindChat   Kind = "chat"
	KindVoice  Kind = "voice"
)

// Category is the media family a file was sniffed as.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryDocument Category = "document"
)

const mib = 1 << 20

var ceilings = map[Category]int64{
	CategoryImage:    5 * mib,
	CategoryVideo:    50 * mib,
	CategoryAudio:    10 * mib,
	CategoryDocument: 10 * mib,
}

var allowed = map[Category][]string{
	CategoryImage: {"image/jpeg", "image/png", "image/gif", "image/webp"},
	CategoryVideo: {"video/mp4", "video/webm", "video/quicktime"},
	CategoryAudio: {"audio/mpeg", "audio/wav", "audio/webm", "audio/ogg", "audio/mp4", "audio/aac"},
	CategoryDocument: {
		"application/pdf",
		"text/plain",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	},
}

// accepts lists the categories per kind in matching order; video precedes
// audio so a webm recording sent to chat is stored as video.
var accepts = map[Kind][]Category{
	KindAvatar: {CategoryImage},
	KindCover:  {CategoryImage},
	KindPost:   {CategoryImage, CategoryVideo},
	KindStory:  {CategoryImage, CategoryVideo},
	KindChat:   {CategoryImage, CategoryVideo, CategoryAudio, CategoryDocument},
	KindVoice:  {CategoryAudio},
}

func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	_, ok := accepts[k]
	return k, ok
}

// Ceiling is the largest accepted size, in bytes, for c.
func Ceiling(c Category) int64 {
	return ceilings[c]
}

// MaxCeiling is the largest size any file of kind k can have.
func MaxCeiling(k Kind) int64 {
	var max int64
	for _, c := range accepts[k] {
		if ceilings[c] > max {
			max = ceilings[c]
		}
	}
	return max
}

// Classify maps a sniffed type onto the first category of k that allows it.
func Classify(k Kind, m *mimetype.MIME) (Category, error) {
	for _, c := range accepts[k] {
		for _, a := range allowed[c] {
			if m.Is(a) {
				return c, nil
			}
		}
	}
	return "", fmt.Errorf("file type %s is not allowed for %s uploads", m.String(), k)
}
