package auth

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

type User struct {
	Password string `json:"password"`
	Wallet   string `json:"wallet"`
}

// Credentials is the static username to user mapping, loaded once at
// startup. It is not reloadable at runtime.
type Credentials struct {
	users map[string]User
}

func Load(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading users file [%s]", path)
	}
	var users map[string]User
	if err = json.Unmarshal(data, &users); err != nil {
		return nil, errors.Wrapf(err, "parsing users file [%s]", path)
	}
	return &Credentials{users: users}, nil
}

// Authenticate checks username and password against the static list and
// returns the matching user. Passwords are compared as-is, per the source
// data format.
func (c *Credentials) Authenticate(username, password string) (User, bool) {
	user, ok := c.users[username]
	if !ok || user.Password != password {
		return User{}, false
	}
	return user, true
}
