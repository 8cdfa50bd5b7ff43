package profile

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"fogsly/pkg/errutil"
	applog "fogsly/pkg/logger"
	"fogsly/pkg/minio"
	"fogsly/pkg/repository"
	"fogsly/pkg/util"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxDisplayName = 64
	maxBio         = 500
)

var (
	ErrProfileNotFound    = errutil.New(errutil.StatusNotFound, "profile not found")
	ErrInvalidDisplayName = errutil.New(errutil.StatusValidationFailed, "display name must be 1 to 64 characters")
	ErrBioTooLong         = errutil.New(errutil.StatusValidationFailed, "bio must be at most 500 characters")
	ErrNotAnImage         = errutil.New(errutil.StatusUnsupportedMediaType, "only image uploads are accepted")
)

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	storage minio.Storage
	profile repository.Repository[UserProfile]
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Storage minio.Storage `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		storage: p.Storage,
		profile: repository.ProvideStore[UserProfile](p.DB),
	}
}

func validDisplayName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n > 0 && n <= maxDisplayName
}

// CreateProfile is called by signup inside its transaction.
func (s *Service) CreateProfile(ctx context.Context, tx *gorm.DB, userID, displayName string) (*UserProfile, error) {
	displayName = strings.TrimSpace(displayName)
	if !validDisplayName(displayName) {
		return nil, ErrInvalidDisplayName
	}

	p := &UserProfile{UserID: userID, DisplayName: displayName}
	if err := s.profile.WithTrx(tx).Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	p, err := s.profile.FindOne(ctx, &UserProfile{UserID: userID})
	if err != nil {
		return nil, errutil.Internal("failed to load profile", err)
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, p UpdateParams) (*UserProfile, error) {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if p.DisplayName != nil {
		name := strings.TrimSpace(*p.DisplayName)
		if !validDisplayName(name) {
			return nil, ErrInvalidDisplayName
		}
		updates["display_name"] = name
	}
	if p.Bio != nil {
		if utf8.RuneCountInString(*p.Bio) > maxBio {
			return nil, ErrBioTooLong
		}
		updates["bio"] = *p.Bio
	}
	if p.Location != nil {
		updates["location"] = strings.TrimSpace(*p.Location)
	}
	if p.Website != nil {
		updates["website"] = strings.TrimSpace(*p.Website)
	}

	if err := s.update(ctx, userID, updates); err != nil {
		return nil, errutil.Internal("failed to update profile", err)
	}
	return s.GetProfile(ctx, userID)
}

func (s *Service) UploadAvatar(ctx context.Context, p ImageParams) (*UserProfile, error) {
	return s.uploadImage(ctx, "avatars", "avatar_url", p)
}

func (s *Service) UploadCover(ctx context.Context, p ImageParams) (*UserProfile, error) {
	return s.uploadImage(ctx, "covers", "cover_url", p)
}

func (s *Service) uploadImage(ctx context.Context, kind, column string, p ImageParams) (*UserProfile, error) {
	if !strings.HasPrefix(p.ContentType, "image/") {
		return nil, ErrNotAnImage
	}
	if s.storage == nil {
		return nil, errutil.NotImplemented("media storage is not configured", nil)
	}
	if _, err := s.GetProfile(ctx, p.UserID); err != nil {
		return nil, err
	}

	objectPath := util.ObjectPath(kind, p.UserID, p.Filename, s.node.Generate().String())
	url, err := s.storage.Upload(ctx, objectPath, p.Body, p.Size, p.ContentType)
	if err != nil {
		return nil, errutil.BadGateway("failed to upload image", err)
	}

	if err := s.update(ctx, p.UserID, map[string]any{column: url, "updated_at": time.Now().UTC()}); err != nil {
		_ = s.storage.Remove(ctx, objectPath)
		return nil, errutil.Internal("failed to save image url", err)
	}

	applog.FromContext(ctx).Info("profile image uploaded", zap.String("user_id", p.UserID), zap.String("kind", kind))
	return s.GetProfile(ctx, p.UserID)
}

// profiles are keyed by user_id, so the generic id based Update does not apply
func (s *Service) update(ctx context.Context, userID string, updates map[string]any) error {
	return s.db.WithContext(ctx).Model(&UserProfile{}).Where("user_id = ?", userID).Updates(updates).Error
}
