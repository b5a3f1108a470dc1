package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore uploads through the Cloudinary upload API. The object
// name doubles as the public id so ownership survives the round trip.
type CloudinaryStore struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryStore{cld: cld}, nil
}

func (s *CloudinaryStore) Name() string { return "cloudinary" }

func (s *CloudinaryStore) Put(ctx context.Context, obj Object, body io.Reader) (string, error) {
	rt := resourceTypeFor(obj.Category)
	res, err := s.cld.Upload.Upload(ctx, body, uploader.UploadParams{
		PublicID:     publicID(obj.Name, rt),
		ResourceType: rt,
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload %s: %w", obj.Name, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload %s: %s", obj.Name, res.Error.Message)
	}
	return res.SecureURL, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, name string) error {
	rt := resourceTypeForExt(path.Ext(name))
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID(name, rt),
		ResourceType: rt,
	})
	if err != nil {
		return fmt.Errorf("cloudinary destroy %s: %w", name, err)
	}
	switch {
	case res.Error.Message != "":
		return errors.New("cloudinary destroy: " + res.Error.Message)
	case res.Result == "not found":
		return ErrObjectNotFound
	}
	return nil
}

// Cloudinary files audio under the video resource type.
func resourceTypeFor(c Category) string {
	switch c {
	case CategoryImage:
		return "image"
	case CategoryVideo, CategoryAudio:
		return "video"
	default:
		return "raw"
	}
}

func resourceTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return "image"
	case ".mp4", ".webm", ".mov", ".mp3", ".wav", ".ogg", ".oga", ".m4a", ".aac":
		return "video"
	default:
		return "raw"
	}
}

// publicID drops the extension except for raw files, whose public id must
// keep it.
func publicID(name, resourceType string) string {
	if resourceType == "raw" {
		return name
	}
	return strings.TrimSuffix(name, path.Ext(name))
}
