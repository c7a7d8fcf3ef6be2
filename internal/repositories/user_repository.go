package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"social-chat/internal/models"
)

// UserRepository reads the user directory.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
	GetByRef(ctx context.Context, ref string) (models.User, error)
}

type UserRepo struct {
	db sqlx.ExtContext
}

func NewUserRepo(db sqlx.ExtContext) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := sqlx.GetContext(ctx, r.db, &u, `SELECT id, ref, nickname FROM users WHERE id=$1`, id)
	return u, translate(err)
}

func (r *UserRepo) GetByRef(ctx context.Context, ref string) (models.User, error) {
	var u models.User
	err := sqlx.GetContext(ctx, r.db, &u, `SELECT id, ref, nickname FROM users WHERE ref=$1`, ref)
	return u, translate(err)
}
