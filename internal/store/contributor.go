package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const sqlGetContributorByID = `
SELECT id, email, name, is_admin, created_at
FROM contributors
WHERE id = $1
`

// GetContributorByID retrieves a contributor by primary key
func (s *Store) GetContributorByID(ctx context.Context, id uuid.UUID) (Contributor, error) {
	var contributor Contributor
	err := s.db.GetContext(ctx, &contributor, sqlGetContributorByID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contributor{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get contributor by id", err)
		return Contributor{}, fmt.Errorf("failed to get contributor by id: %w", err)
	}
	return contributor, nil
}

const sqlGetContributorByEmail = `
SELECT id, email, name, is_admin, created_at
FROM contributors
WHERE email = $1
`

// GetContributorByEmail retrieves a contributor by email
func (s *Store) GetContributorByEmail(ctx context.Context, email string) (Contributor, error) {
	var contributor Contributor
	err := s.db.GetContext(ctx, &contributor, sqlGetContributorByEmail, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contributor{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get contributor by email", err)
		return Contributor{}, fmt.Errorf("failed to get contributor by email: %w", err)
	}
	return contributor, nil
}

const sqlCreateContributor = `
INSERT INTO contributors (email, name)
VALUES ($1, $2)
RETURNING id, email, name, is_admin, created_at
`

// CreateContributor creates a new contributor
func (s *Store) CreateContributor(ctx context.Context, email, name string) (Contributor, error) {
	var contributor Contributor
	err := s.db.GetContext(ctx, &contributor, sqlCreateContributor, email, name)
	if err != nil {
		s.logger.Error(ctx, "failed to create contributor", err)
		return Contributor{}, fmt.Errorf("failed to create contributor: %w", err)
	}
	return contributor, nil
}
