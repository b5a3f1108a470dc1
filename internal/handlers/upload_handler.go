package handlers

import (
	"net/http"

	"github.com/anonto42/linkup/backend/internal/media"
	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/services"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UploadHandler accepts media uploads and deletions
type UploadHandler struct {
	pipeline *media.Pipeline
	profiles *services.ProfileService
	log      *zap.Logger
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(pipeline *media.Pipeline, profiles *services.ProfileService, log *zap.Logger) *UploadHandler {
	return &UploadHandler{pipeline: pipeline, profiles: profiles, log: log.Named("upload")}
}

// RegisterUploadRoutes registers the upload routes. limit throttles uploads.
func (h *UploadHandler) RegisterUploadRoutes(g *echo.Group, limit echo.MiddlewareFunc) {
	g.POST("", h.Upload, limit)
	g.DELETE("", h.Delete)
}

// Upload validates and stores one multipart file. Avatar and cover uploads
// for the caller's own profile also update the profile.
func (h *UploadHandler) Upload(c echo.Context) error {
	kind, valid := media.ParseKind(c.FormValue("type"))
	if !valid {
		return apperrors.NewInvalidInputError("type must be one of avatar, cover, post, story, chat, voice")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewInvalidInputError("file is required")
	}
	file, err := fh.Open()
	if err != nil {
		return apperrors.NewInvalidInputError("could not read file")
	}
	defer file.Close()

	actor := middleware.ActorFrom(c)
	targetID := c.FormValue("targetId")
	ctx := c.Request().Context()

	res, err := h.pipeline.Upload(ctx, media.Caller{UID: actor.ID, Role: actor.Role}, media.Upload{
		Kind:     kind,
		TargetID: targetID,
		Size:     fh.Size,
		Body:     file,
	})
	if err != nil {
		return err
	}

	if targetID == "" || targetID == actor.ID {
		switch kind {
		case media.KindAvatar:
			_, err = h.profiles.SetAvatar(ctx, actor.ID, res.URL)
		case media.KindCover:
			_, err = h.profiles.SetCover(ctx, actor.ID, res.URL)
		}
		if err != nil {
			h.log.Warn("profile image update failed", zap.String("uid", actor.ID), zap.String("kind", string(kind)), zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"url":      res.URL,
		"fileName": res.FileName,
		"fileType": res.FileType,
		"size":     res.Size,
		"category": res.Category,
	})
}

// Delete removes an uploaded object owned by the caller. Holders of
// delete_any_media may remove any object.
func (h *UploadHandler) Delete(c echo.Context) error {
	name := c.QueryParam("fileName")
	if name == "" {
		return apperrors.NewInvalidInputError("fileName is required")
	}
	actor := middleware.ActorFrom(c)
	if err := h.pipeline.Delete(c.Request().Context(), media.Caller{UID: actor.ID, Role: actor.Role}, name); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "file deleted"})
}
