package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/anonto42/linkup/backend/internal/metrics"
	"github.com/anonto42/linkup/backend/internal/permissions"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// sniffLen is how many leading bytes are inspected to detect the type.
const sniffLen = 3072

var errTooLarge = errors.New("upload exceeds its declared size")

// Caller is the authenticated uploader with the role loaded for this request.
type Caller struct {
	UID  string
	Role permissions.Role
}

// Upload is one file submitted to the pipeline. Size is the length the
// transport reported; Body must not yield more than Size bytes.
type Upload struct {
	Kind     Kind
	TargetID string
	Size     int64
	Body     io.Reader
}

type Result struct {
	URL      string   `json:"url"`
	FileName string   `json:"fileName"`
	FileType string   `json:"fileType"`
	Size     int64    `json:"size"`
	Category Category `json:"category"`
}

// Pipeline validates uploads and hands accepted bytes to a Store.
type Pipeline struct {
	store Store
	log   *zap.Logger
}

func NewPipeline(store Store, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{store: store, log: log.Named("media")}
}

func (p *Pipeline) Backend() string { return p.store.Name() }

// Upload checks permission, size and sniffed type, in that order, and only
// then writes. Oversized files are rejected from the declared size before
// any byte is read.
func (p *Pipeline) Upload(ctx context.Context, c Caller, u Upload) (*Result, error) {
	res, err := p.upload(ctx, c, u)
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		if ae := apperrors.GetAppError(err); ae == nil || ae.HTTPStatus >= 500 {
			outcome = "error"
		}
	}
	metrics.RecordUpload(string(u.Kind), outcome, u.Size)
	return res, err
}

func (p *Pipeline) upload(ctx context.Context, c Caller, u Upload) (*Result, error) {
	if !permissions.HasPermission(c.Role, permissions.UploadMedia) {
		return nil, apperrors.NewForbiddenError("missing permission: " + string(permissions.UploadMedia))
	}
	if _, ok := accepts[u.Kind]; !ok {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unknown upload type %q", u.Kind))
	}
	if u.Size <= 0 {
		return nil, apperrors.NewInvalidInputError("file is empty")
	}
	if max := MaxCeiling(u.Kind); u.Size > max {
		return nil, tooLarge(max)
	}
	targetID := u.TargetID
	if targetID == "" {
		targetID = c.UID
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(u.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperrors.NewInvalidInputError("could not read file")
	}
	head = head[:n]

	mt := mimetype.Detect(head)
	category, err := Classify(u.Kind, mt)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if ceiling := Ceiling(category); u.Size > ceiling {
		return nil, tooLarge(ceiling)
	}

	name, err := ObjectName(u.Kind, targetID, c.UID, mt.Extension())
	if err != nil {
		return nil, apperrors.NewInvalidInputError("invalid targetId")
	}
	obj := Object{Name: name, ContentType: mt.String(), Category: category, Size: u.Size}
	body := &boundedReader{r: io.MultiReader(bytes.NewReader(head), u.Body), left: u.Size}

	url, err := p.store.Put(ctx, obj, body)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return nil, apperrors.NewInvalidInputError("file is larger than declared")
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		p.log.Error("upload failed", zap.String("object", name), zap.String("backend", p.store.Name()), zap.Error(err))
		return nil, apperrors.NewInternalError(err, "upload failed")
	}

	p.log.Info("file uploaded",
		zap.String("object", name),
		zap.String("uid", c.UID),
		zap.String("type", obj.ContentType),
		zap.Int64("size", u.Size))
	return &Result{URL: url, FileName: name, FileType: obj.ContentType, Size: u.Size, Category: category}, nil
}

// Delete removes an object uploaded by the caller. Holders of
// delete_any_media may remove anyone's. Deleting a missing object succeeds.
func (p *Pipeline) Delete(ctx context.Context, c Caller, name string) error {
	owner, err := OwnerOf(name)
	if err != nil {
		return apperrors.NewInvalidInputError("invalid fileName")
	}
	if owner != c.UID && !permissions.HasPermission(c.Role, permissions.DeleteAnyMedia) {
		return apperrors.NewForbiddenError("you can only delete your own files")
	}
	err = p.store.Delete(ctx, name)
	switch {
	case err == nil, errors.Is(err, ErrObjectNotFound):
		p.log.Info("file deleted", zap.String("object", name), zap.String("uid", c.UID))
		return nil
	case apperrors.IsAppError(err):
		return err
	default:
		p.log.Error("delete failed", zap.String("object", name), zap.Error(err))
		return apperrors.NewInternalError(err, "delete failed")
	}
}

func tooLarge(limit int64) error {
	return apperrors.NewInvalidInputError(fmt.Sprintf("file exceeds the %d MB limit", limit/mib))
}

// boundedReader fails once more than left bytes have been read.
type boundedReader struct {
	r    io.Reader
	left int64
}

func (b *boundedReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.left -= int64(n)
	if b.left < 0 {
		return n, errTooLarge
	}
	return n, err
}
