package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/topupstore-backend/pkg/db/models"
	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/topupstore-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateSavedContact(ctx context.Context, id uuid.UUID, column, value string) error
}

// Service answers who the current user is and stores their delivery contacts.
type Service struct {
	repo repository
}

// NewService builds a users service.
func NewService(repo repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &Service{repo: repo}, nil
}

// CurrentUser loads the account for the given user id.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*Account, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return FromModel(user), nil
}

// SaveDeliveryContact remembers the confirmed contact as the default for method.
func (s *Service) SaveDeliveryContact(ctx context.Context, userID string, method enums.DeliveryMethod, value string) error {
	id, err := parseUserID(userID)
	if err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "contact is required")
	}

	var column string
	switch method {
	case enums.DeliveryMethodEmail:
		column = "saved_email"
	case enums.DeliveryMethodMessaging:
		column = "saved_messaging_handle"
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported delivery method %q", method))
	}

	if err := s.repo.UpdateSavedContact(ctx, id, column, value); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save delivery contact")
	}
	return nil
}

func parseUserID(userID string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return id, nil
}
