package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/user"
)

const usersTable = "users"

var userColumns = []string{
	"id", "name", "username", "email", "role", "can_modify",
	"is_active", "password_hash", "created_at", "updated_at", "last_login",
}

type userRow struct {
	ID           string      `db:"id"`
	Name         null.String `db:"name"`
	Username     null.String `db:"username"`
	Email        null.String `db:"email"`
	Role         string      `db:"role"`
	CanModify    bool        `db:"can_modify"`
	IsActive     null.Bool   `db:"is_active"`
	PasswordHash null.Bytes  `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) pack(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Role:         usr.Role,
		CanModify:    usr.CanModify,
		IsActive:     null.BoolFromPtr(usr.IsActive),
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unpack(r userRow) user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name.String,
		Username:     r.Username.String,
		Email:        r.Email.String,
		Role:         r.Role,
		CanModify:    r.CanModify,
		IsActive:     r.IsActive.Ptr(),
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

func (repo userRepository) selectUsers(ctx context.Context, qry sq.SelectBuilder, exec []core.DBExecutor) ([]userRow, error) {
	q, args, err := qry.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	rows, err := repo.getExec(exec).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var urows []userRow
	if err = sqlx.StructScan(rows, &urows); err != nil {
		return nil, err
	}
	return urows, nil
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	qry := psql.Select("COUNT(*)").
		From(usersTable).
		Where(sq.Or{sq.Eq{"username": username}, sq.Eq{"email": email}})
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		qry = qry.Where(sq.NotEq{"id": ids})
	}

	q, args, err := qry.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	var count int
	if err = repo.getExec(exec).QueryRowContext(ctx, q, args...).Scan(&count); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if count > 0 {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	r := repo.pack(usr)

	q, args, err := psql.Insert(usersTable).
		Columns(userColumns...).
		Values(r.ID, r.Name, r.Username, r.Email, r.Role, r.CanModify,
			r.IsActive, r.PasswordHash, r.CreatedAt, r.UpdatedAt, r.LastLogin).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, q, args...); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unpack(r), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	qry := psql.Select(userColumns...).From(usersTable)

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			qry = qry.Where(sq.Or{sq.ILike{"name": val}, sq.ILike{"username": val}, sq.ILike{"email": val}})
		}
		if filter.Role != "" {
			qry = qry.Where(sq.Eq{"role": filter.Role})
		}
		if filter.IsActive != nil {
			qry = qry.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if !filter.CreatedFrom.IsZero() {
			qry = qry.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			qry = qry.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}

	if ordering != nil {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		qry = qry.OrderBy(strings.Join(orderList, ", "))
	}

	urows, err := repo.selectUsers(ctx, qry, exec)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(urows))
	for _, r := range urows {
		users = append(users, repo.unpack(r))
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	qry := psql.Select(userColumns...).From(usersTable)

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		qry = qry.Where(sq.Eq{"id": filter.ID})
	case filter.Username != "":
		qry = qry.Where(sq.Eq{"username": filter.Username})
	case filter.Email != "":
		qry = qry.Where(sq.Eq{"email": filter.Email})
	case filter.UsernameOrEmail != nil:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		if uname == "" && email == "" {
			return user.User{}, user.ErrNotFound
		}
		qry = qry.Where(sq.Or{sq.Eq{"username": uname}, sq.Eq{"email": email}})
	default:
		return user.User{}, user.ErrNotFound
	}

	urows, err := repo.selectUsers(ctx, qry.Limit(1), exec)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user")
	}
	if len(urows) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.unpack(urows[0]), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	r := repo.pack(usr)

	q, args, err := psql.Update(usersTable).
		SetMap(map[string]interface{}{
			"name":          r.Name,
			"username":      r.Username,
			"email":         r.Email,
			"role":          r.Role,
			"can_modify":    r.CanModify,
			"is_active":     r.IsActive,
			"password_hash": r.PasswordHash,
			"updated_at":    r.UpdatedAt,
			"last_login":    r.LastLogin,
		}).
		Where(sq.Eq{"id": r.ID}).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	res, err := repo.getExec(exec).ExecContext(ctx, q, args...)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.unpack(r), nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	q, args, err := psql.Delete(usersTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.getExec(exec).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(cnt), nil
}
