package users

import (
	"errors"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/wgwall/walld/internal/jsondb"
)

const dateFormat = "2006-01-02 15:04:05"

// Validation and lookup errors.
var (
	ErrInvalidName    = errors.New("pname must be 2-20 characters of Chinese, letters, digits or underscore")
	ErrNameTaken      = errors.New("pname is already taken")
	ErrShortPassword  = errors.New("password must be at least 4 characters")
	ErrInvalidGender  = errors.New("gender must be 男, 女 or 保密")
	ErrBadCredentials = errors.New("pname or password is incorrect")
	ErrNotFound       = errors.New("user not found")
)

var nameRe = regexp.MustCompile(`^[\p{Han}A-Za-z0-9_]{2,20}$`)

var genders = map[string]bool{"男": true, "女": true, "保密": true}

// Recorder receives a one-line description of each successful mutation.
type Recorder interface {
	Record(message string)
}

// Service owns the users document.
type Service struct {
	doc      *jsondb.Doc[*User]
	recorder Recorder
	now      func() time.Time
}

// NewService wraps an opened users document.
func NewService(doc *jsondb.Doc[*User]) *Service {
	return &Service{doc: doc, now: time.Now}
}

// SetRecorder installs the mutation history recorder.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// Register validates and creates a new account. An empty gender defaults
// to 保密 and an empty portrait to DefaultPortrait.
func (s *Service) Register(name, password, gender, portrait string) (Profile, error) {
	if !nameRe.MatchString(name) {
		return Profile{}, ErrInvalidName
	}
	if utf8.RuneCountInString(password) < 4 {
		return Profile{}, ErrShortPassword
	}
	if gender == "" {
		gender = "保密"
	}
	if !genders[gender] {
		return Profile{}, ErrInvalidGender
	}
	if portrait == "" {
		portrait = DefaultPortrait
	}
	var user *User
	err := s.doc.Mutate(func(rows []*User) ([]*User, error) {
		for _, u := range rows {
			if u.Name == name {
				return nil, ErrNameTaken
			}
		}
		user = &User{
			ID:        jsondb.NextID(IDWidth, userIDs(rows)),
			Name:      name,
			Password:  password,
			Gender:    gender,
			Portrait:  portrait,
			CreatedAt: s.now().Format(dateFormat),
		}
		return append([]*User{user}, rows...), nil
	})
	if err != nil {
		return Profile{}, err
	}
	if s.recorder != nil {
		s.recorder.Record("register user " + user.ID)
	}
	return user.Profile(), nil
}

// Login scans the users document for a name and password equality match.
// A miss on either field yields the same error, so the response does not
// reveal whether the account exists.
func (s *Service) Login(name, password string) (Profile, error) {
	for u := range s.doc.All() {
		if u.Name == name && u.Password == password {
			return u.Profile(), nil
		}
	}
	return Profile{}, ErrBadCredentials
}

// FindByName looks up one account by exact display name.
func (s *Service) FindByName(name string) (Profile, error) {
	for u := range s.doc.All() {
		if u.Name == name {
			return u.Profile(), nil
		}
	}
	return Profile{}, ErrNotFound
}

// FindByID looks up one account by id.
func (s *Service) FindByID(id string) (Profile, error) {
	for u := range s.doc.All() {
		if u.ID == id {
			return u.Profile(), nil
		}
	}
	return Profile{}, ErrNotFound
}

func userIDs(rows []*User) func(yield func(string) bool) {
	return func(yield func(string) bool) {
		for _, u := range rows {
			if !yield(u.ID) {
				return
			}
		}
	}
}
