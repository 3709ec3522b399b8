package service

import (
	"context"
	"strings"

	"chatapp-gateway/internal/models"
	"chatapp-gateway/internal/store"
)

type UpdateUserInput struct {
	Username  *string `json:"username" validate:"omitempty,notblank,min=2,max=32,username"`
	AvatarURL *string `json:"avatarUrl" validate:"omitempty,max=2048"`
}

func (s *Service) GetUser(ctx context.Context, userID int64) (models.User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *Service) UpdateUser(ctx context.Context, userID int64, input UpdateUserInput) (models.User, error) {
	if input.Username != nil {
		trimmed := strings.TrimSpace(*input.Username)
		input.Username = &trimmed
	}
	if err := s.validate.Struct(input); err != nil {
		return models.User{}, err
	}

	return s.store.UpdateUser(ctx, userID, store.UserUpdate{Username: input.Username, AvatarURL: input.AvatarURL})
}
