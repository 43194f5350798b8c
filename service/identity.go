package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"library_backend/db"
	"library_backend/logging"
	"library_backend/models"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

var emailRe = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// Registration is a self-signup or admin-created account.
type Registration struct {
	Username string
	Password string
	FullName string
	Email    string
	Role     models.Role
}

// Profile is the mutable part of a user; username never changes.
type Profile struct {
	FullName string
	Email    string
	Role     models.Role
}

type IdentityService struct {
	repo *db.Repo
	log  logging.Logger
	cost int
}

func NewIdentityService(repo *db.Repo, log logging.Logger) *IdentityService {
	return &IdentityService{repo: repo, log: log, cost: bcrypt.DefaultCost}
}

// WithHashCost 测试里用 bcrypt.MinCost 加速
func (s *IdentityService) WithHashCost(cost int) *IdentityService {
	s.cost = cost
	return s
}

func validEmail(email string) bool { return emailRe.MatchString(email) }

func (r *Registration) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	r.Role = models.Role(strings.ToUpper(strings.TrimSpace(string(r.Role))))
}

func (r Registration) validate() *Error {
	switch {
	case r.Username == "":
		return invalid("Username cannot be empty")
	case len(r.Password) < minPasswordLen:
		return invalid("Password must be at least 6 characters long")
	case r.FullName == "":
		return invalid("Full name cannot be empty")
	case !validEmail(r.Email):
		return invalid("Invalid email format")
	case !r.Role.Valid():
		return invalid("Invalid role. Must be ADMIN or STUDENT")
	}
	return nil
}

// Register creates a user with a bcrypt-hashed password.
func (s *IdentityService) Register(ctx context.Context, in Registration) (*models.User, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	taken, err := s.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, newErr(KindDuplicate, "Username already exists")
	}
	if taken, err = s.EmailExists(ctx, in.Email); err != nil {
		return nil, err
	}
	if taken {
		return nil, newErr(KindDuplicate, "Email already exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, s.fail(ctx, "hash password", err)
	}
	u := &models.User{
		Username: in.Username,
		Password: string(hash),
		FullName: in.FullName,
		Email:    in.Email,
		Role:     in.Role,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, s.translate(ctx, "register", err)
	}
	s.log.Info(ctx, "user registered", "user_id", u.ID, "username", u.Username, "role", u.Role)
	return u, nil
}

// Login checks the credentials and returns the user.
func (s *IdentityService) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, invalid("Username and password are required")
	}
	u, err := s.repo.FindUserByUsername(ctx, username)
	if errors.Is(err, db.ErrUserNotFound) {
		return nil, newErr(KindAuthFailed, "Invalid username or password")
	}
	if err != nil {
		return nil, s.fail(ctx, "login", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		s.log.Warn(ctx, "login failed", "username", username)
		return nil, newErr(KindAuthFailed, "Invalid username or password")
	}
	return u, nil
}

func (s *IdentityService) Get(ctx context.Context, id uint) (*models.User, error) {
	if id == 0 {
		return nil, invalid("Invalid user ID")
	}
	u, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, s.translate(ctx, "get user", err)
	}
	return u, nil
}

func (s *IdentityService) ByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := s.repo.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, s.translate(ctx, "get user", err)
	}
	return u, nil
}

func (s *IdentityService) List(ctx context.Context) ([]models.User, error) {
	return s.list(ctx, "")
}

func (s *IdentityService) ListStudents(ctx context.Context) ([]models.User, error) {
	return s.list(ctx, models.RoleStudent)
}

func (s *IdentityService) list(ctx context.Context, role models.Role) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx, role)
	if err != nil {
		return nil, s.fail(ctx, "list users", err)
	}
	return users, nil
}

// Update changes full name, email and role of an existing user.
func (s *IdentityService) Update(ctx context.Context, id uint, p Profile) (*models.User, error) {
	if id == 0 {
		return nil, invalid("Invalid user ID")
	}
	p.FullName = strings.TrimSpace(p.FullName)
	p.Email = strings.TrimSpace(p.Email)
	p.Role = models.Role(strings.ToUpper(strings.TrimSpace(string(p.Role))))
	switch {
	case p.FullName == "":
		return nil, invalid("Full name cannot be empty")
	case !validEmail(p.Email):
		return nil, invalid("Invalid email format")
	case !p.Role.Valid():
		return nil, invalid("Invalid role. Must be ADMIN or STUDENT")
	}
	taken, err := s.repo.EmailExists(ctx, p.Email, id)
	if err != nil {
		return nil, s.fail(ctx, "update user", err)
	}
	if taken {
		return nil, newErr(KindDuplicate, "Email already exists")
	}
	u := &models.User{ID: id, FullName: p.FullName, Email: p.Email, Role: p.Role}
	if err := s.repo.UpdateUserProfile(ctx, u); err != nil {
		return nil, s.translate(ctx, "update user", err)
	}
	return s.Get(ctx, id)
}

// Delete removes a user that never borrowed anything.
func (s *IdentityService) Delete(ctx context.Context, id uint) error {
	if id == 0 {
		return invalid("Invalid user ID")
	}
	if err := s.repo.DeleteUserByID(ctx, id); err != nil {
		return s.translate(ctx, "delete user", err)
	}
	s.log.Info(ctx, "user deleted", "user_id", id)
	return nil
}

func (s *IdentityService) UsernameExists(ctx context.Context, username string) (bool, error) {
	ok, err := s.repo.UsernameExists(ctx, strings.TrimSpace(username))
	if err != nil {
		return false, s.fail(ctx, "username exists", err)
	}
	return ok, nil
}

func (s *IdentityService) EmailExists(ctx context.Context, email string) (bool, error) {
	ok, err := s.repo.EmailExists(ctx, strings.TrimSpace(email), 0)
	if err != nil {
		return false, s.fail(ctx, "email exists", err)
	}
	return ok, nil
}

// EnsureAdmin registers in as an ADMIN unless some admin already exists.
// It reports whether a user was created.
func (s *IdentityService) EnsureAdmin(ctx context.Context, in Registration) (bool, error) {
	n, err := s.repo.CountAdmins(ctx)
	if err != nil {
		return false, s.fail(ctx, "count admins", err)
	}
	if n > 0 {
		return false, nil
	}
	in.Role = models.RoleAdmin
	existing, err := s.ByUsername(ctx, in.Username)
	switch {
	case err == nil:
		// 用户已存在：直接提升为管理员
		if err := s.repo.SetUserRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return false, s.translate(ctx, "promote admin", err)
		}
		return true, nil
	case KindOf(err) != KindNotFound:
		return false, err
	}
	if _, err := s.Register(ctx, in); err != nil {
		return false, err
	}
	return true, nil
}

func (s *IdentityService) translate(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, db.ErrUserNotFound):
		return newErr(KindNotFound, "User not found")
	case errors.Is(err, db.ErrDuplicateUsername):
		return newErr(KindDuplicate, "Username already exists")
	case errors.Is(err, db.ErrDuplicateEmail):
		return newErr(KindDuplicate, "Email already exists")
	case errors.Is(err, db.ErrUserHasLoans):
		return newErr(KindBusy, "Cannot delete user. User has book issue history")
	}
	return s.fail(ctx, op, err)
}

func (s *IdentityService) fail(ctx context.Context, op string, err error) error {
	s.log.Error(ctx, "identity store error", "op", op, "err", err)
	return storeErr(err)
}
