package media

import (
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidName = errors.New("invalid object name")

// ObjectName builds {kind}/{targetID}/{uid}_{uuid}{ext}. The uploader is
// recoverable from the name alone, which is what delete authorization uses.
func ObjectName(k Kind, targetID, uid, ext string) (string, error) {
	if !validSegment(targetID) || !validSegment(uid) || strings.Contains(uid, "_") {
		return "", ErrInvalidName
	}
	return string(k) + "/" + targetID + "/" + uid + "_" + uuid.NewString() + ext, nil
}

// OwnerOf returns the uploader uid embedded in name.
func OwnerOf(name string) (string, error) {
	parts := strings.Split(name, "/")
	if len(parts) != 3 || path.Clean(name) != name {
		return "", ErrInvalidName
	}
	if _, ok := ParseKind(parts[0]); !ok || !validSegment(parts[1]) {
		return "", ErrInvalidName
	}
	owner, rest, ok := strings.Cut(parts[2], "_")
	if !ok || owner == "" || rest == "" {
		return "", ErrInvalidName
	}
	return owner, nil
}

// KindOf returns the kind prefix of a well-formed object name.
func KindOf(name string) Kind {
	k, _, _ := strings.Cut(name, "/")
	return Kind(k)
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\?#")
}
