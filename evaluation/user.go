package evaluation

import (
	"strconv"
	"time"
)

// User is a collection of attributes that can affect toggle evaluation,
// usually corresponding to a user of your application.
type User struct {
	Key        string            `json:"key"`
	Attributes map[string]string `json:"attributes"`
}

// NewUser creates a user keyed by the current high-resolution timestamp.
// Use StableRollout to pin a stable key for percentage rollouts.
func NewUser() *User {
	return &User{
		Key:        strconv.FormatInt(time.Now().UnixNano(), 10),
		Attributes: make(map[string]string),
	}
}

// StableRollout sets a unique id for the user, used for percentage rollouts.
func (u *User) StableRollout(key string) *User {
	u.Key = key
	return u
}

// With adds an attribute to the user.
func (u *User) With(name, value string) *User {
	if u.Attributes == nil {
		u.Attributes = make(map[string]string)
	}
	u.Attributes[name] = value
	return u
}

// Attr returns the named attribute value, or "" if it is not set.
func (u *User) Attr(name string) string {
	return u.Attributes[name]
}

// ContainAttr reports whether the user has the named attribute.
func (u *User) ContainAttr(name string) bool {
	_, ok := u.Attributes[name]
	return ok
}
