// Package users implements registration, login and lookup over the
// users document.
//
// Accounts are append-only: a user is created at registration and never
// mutated or deleted afterwards.
package users

// IDWidth is the zero-padded width of user ids. A display convention,
// not a capacity limit.
const IDWidth = 10

// DefaultPortrait is assigned when registration carries no portrait.
const DefaultPortrait = "portrait-img/default.png"

// User is one stored account record.
//
// Field names are part of the on-disk document layout and must not change.
// Passwords are stored as-is and compared by equality; the existing user
// documents already contain them in that form, so hashing here would lock
// every account out.
type User struct {
	ID        string `json:"id" jsonschema:"description=10-digit zero-padded user id, unique and monotonically assigned"`
	Name      string `json:"pname" jsonschema:"description=Display name, unique"`
	Password  string `json:"password" jsonschema:"description=Credential, compared by equality"`
	Gender    string `json:"gender" jsonschema:"description=One of 男 / 女 / 保密"`
	Portrait  string `json:"portrait" jsonschema:"description=Portrait path"`
	CreatedAt string `json:"created_at" jsonschema:"description=Registration timestamp, 2006-01-02 15:04:05"`
}

// Clone returns a copy of the user.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// Profile is the externally visible part of a user record.
type Profile struct {
	ID        string `json:"id"`
	Name      string `json:"pname"`
	Gender    string `json:"gender"`
	Portrait  string `json:"portrait"`
	CreatedAt string `json:"created_at"`
}

// Profile strips the credential off a user record.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Name:      u.Name,
		Gender:    u.Gender,
		Portrait:  u.Portrait,
		CreatedAt: u.CreatedAt,
	}
}
