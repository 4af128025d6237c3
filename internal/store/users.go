package store

import (
	"context"

	"ms-resale/internal/apperr"
	"ms-resale/internal/models"
)

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.Bun.NewInsert().Model(user).Exec(ctx)
	return wrap(err, "create user")
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return &user, nil
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	err := s.Bun.NewSelect().
		Model(&user).
		Where("phone = ?", phone).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "user with phone", phone)
	}
	return &user, nil
}

// UpdateUser writes the given columns of user.
func (s *Store) UpdateUser(ctx context.Context, user *models.User, columns ...string) error {
	res, err := s.Bun.NewUpdate().
		Model(user).
		Column(columns...).
		Where("id = ?", user.ID).
		Exec(ctx)
	if err != nil {
		return wrap(err, "update user")
	}
	if rowsAffected(res) == 0 {
		return apperr.NotFound("user %s not found", user.ID)
	}
	return nil
}
