package storage

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/eduverify/credtrust/storage/model"
)

// UsersStorage is the database backed model.UsersStore
type UsersStorage struct {
	db     *gorm.DB
	params Argon2idParams
}

// UsersStorage returns the users store sharing the warehouse connection
func (s *Storage) UsersStorage() *UsersStorage {
	return &UsersStorage{
		db:     s.db,
		params: s.userParams,
	}
}

var (
	errUserCredentials = errors.New("invalid credentials")
	errUserDisabled    = errors.New("user disabled")
	errUserPending     = errors.New("registration not verified")
)

// normalizeUser canonicalizes the fields used for lookups and scoping
func normalizeUser(u *model.User) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Institution = strings.TrimSpace(u.Institution)
}

// applyUserData overlays the set fields of data onto u; passwordHash
// replaces the stored hash when not empty
func applyUserData(u *model.User, data model.UserData, passwordHash string) {
	if data.DisplayName != nil {
		u.DisplayName = *data.DisplayName
	}
	if data.Role != nil {
		u.Role = *data.Role
	}
	if data.Email != nil {
		u.Email = *data.Email
	}
	if data.Phone != nil {
		u.Phone = *data.Phone
	}
	if data.Institution != nil {
		u.Institution = *data.Institution
	}
	if data.Disabled != nil {
		u.Disabled = *data.Disabled
	}
	if data.PendingVerification != nil {
		u.PendingVerification = *data.PendingVerification
	}
	if passwordHash != "" {
		u.PasswordHash = passwordHash
	}
	normalizeUser(u)
}

// hashForUpdate hashes the new password contained in data, if any
func hashForUpdate(data model.UserData, params Argon2idParams) (string, error) {
	if data.Password == nil {
		return "", nil
	}
	if *data.Password == "" {
		return "", errors.New("password cannot be empty")
	}
	return newPasswordHash(*data.Password, params)
}

// usable rejects accounts that must not log in
func usable(u *model.User) error {
	if u.Disabled {
		return errUserDisabled
	}
	if u.PendingVerification {
		return errUserPending
	}
	return nil
}

func withoutHash(u model.User) *model.User {
	u.PasswordHash = ""
	return &u
}

func (s *UsersStorage) byUsername(username string) *gorm.DB {
	return s.db.Where(map[string]any{"username": username})
}

func (s *UsersStorage) find(username string) (*model.User, error) {
	var u model.User
	err := s.byUsername(username).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.NotFoundErrorFmt("user not found: %s", username)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &u, nil
}

// Count returns the number of users
func (s *UsersStorage) Count() (int64, error) {
	var n int64
	return n, errors.WithStack(s.db.Model(&model.User{}).Count(&n).Error)
}

// CountByRole returns the number of users with the passed role
func (s *UsersStorage) CountByRole(role string) (int64, error) {
	var n int64
	err := s.db.Model(&model.User{}).Where(map[string]any{"role": role}).Count(&n).Error
	return n, errors.WithStack(err)
}

// List returns all users ordered by username
func (s *UsersStorage) List() ([]model.User, error) {
	var users []model.User
	if err := s.db.Order("username").Omit("password_hash").Find(&users).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return users, nil
}

// Get returns the user with the passed username
func (s *UsersStorage) Get(username string) (*model.User, error) {
	u, err := s.find(username)
	if err != nil {
		return nil, err
	}
	return withoutHash(*u), nil
}

// Create stores a new user with the hash of password
func (s *UsersStorage) Create(user model.User, password string) (*model.User, error) {
	if user.Username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	if _, err := s.find(user.Username); err == nil {
		return nil, model.AlreadyExistsErrorFmt("user already exists: %s", user.Username)
	} else if !model.IsNotFound(err) {
		return nil, err
	}
	hash, err := newPasswordHash(password, s.params)
	if err != nil {
		return nil, err
	}
	user.ID = 0
	user.PasswordHash = hash
	normalizeUser(&user)
	if err = s.db.Create(&user).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return withoutHash(user), nil
}

// Update changes the set fields of data
func (s *UsersStorage) Update(username string, data model.UserData) (*model.User, error) {
	hash, err := hashForUpdate(data, s.params)
	if err != nil {
		return nil, err
	}
	u, err := s.find(username)
	if err != nil {
		return nil, err
	}
	applyUserData(u, data, hash)
	if err = s.db.Save(u).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return withoutHash(*u), nil
}

// Delete removes a user
func (s *UsersStorage) Delete(username string) error {
	res := s.byUsername(username).Delete(&model.User{})
	if res.Error != nil {
		return errors.WithStack(res.Error)
	}
	if res.RowsAffected == 0 {
		return model.NotFoundErrorFmt("user not found: %s", username)
	}
	return nil
}

// Authenticate checks the password of an enabled user. Hashes created with
// outdated parameters are upgraded on success.
func (s *UsersStorage) Authenticate(username, password string) (*model.User, error) {
	u, err := s.find(username)
	if err != nil {
		return nil, err
	}
	if err = usable(u); err != nil {
		return nil, err
	}
	valid, rehash := checkPassword(u.PasswordHash, password, s.params)
	if !valid {
		return nil, errUserCredentials
	}
	if rehash {
		if hash, err := newPasswordHash(password, s.params); err == nil {
			if err = s.db.Model(u).Update("password_hash", hash).Error; err != nil {
				log.WithError(err).WithField("user", username).Warn("failed to upgrade password hash")
			}
		}
	}
	return withoutHash(*u), nil
}
