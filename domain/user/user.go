// Package user is the user family: the aggregate, its events and the users
// read model with login and email lookups.
package user

import (
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/core/es/assert"
	"github.com/getdevflow/core-sub003/domain/readmodel"
)

const AggregateType = "user"

var loginPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,59}$`)

type User struct {
	es.BaseAggregate

	Login      string
	Email      string
	FirstName  string
	LastName   string
	Pass       string
	Timezone   string
	Locale     string
	Meta       readmodel.Meta
	Registered time.Time
	Modified   time.Time
}

// Details are the fields a user is created with. Pass is a hash from
// HashPassword.
type Details struct {
	Login     string
	Email     string
	FirstName string
	LastName  string
	Pass      string
	Timezone  string
	Locale    string
}

func New() *User { return &User{Meta: readmodel.Meta{}} }

func NewRepository(store es.TransactionalStore, opts ...es.RepositoryOption) *es.Repository[*User] {
	return es.NewRepository(store, New, opts...)
}

func (u *User) AggregateType() string { return AggregateType }

func (u *User) Apply(ev es.Event) error {
	switch e := ev.(type) {
	case UserWasCreated:
		u.Login = e.Login
		u.Email = e.Email
		u.FirstName = e.FirstName
		u.LastName = e.LastName
		u.Pass = e.Pass
		u.Timezone = e.Timezone
		u.Locale = e.Locale
		u.Registered = e.Registered
		u.Modified = e.Registered
	case UserEmailWasChanged:
		u.Email = e.Email
	case UserFirstNameWasChanged:
		u.FirstName = e.FirstName
	case UserLastNameWasChanged:
		u.LastName = e.LastName
	case UserPassWasChanged:
		u.Pass = e.Pass
	case UserTimezoneWasChanged:
		u.Timezone = e.Timezone
	case UserLocaleWasChanged:
		u.Locale = e.Locale
	case UserMetaWasChanged:
		u.Meta = u.Meta.With(e.Key, e.Value)
	case UserModifiedWasChanged:
		u.Modified = e.Modified
	case UserWasDeleted:
	default:
		return es.UnknownEvent(u, ev)
	}
	return nil
}

// === Commands ===

func Create(id es.ID, d Details, now time.Time) (*User, error) {
	u := New()
	if d.Timezone == "" {
		d.Timezone = "UTC"
	}
	if d.Locale == "" {
		d.Locale = "en"
	}
	d.Login = strings.ToLower(strings.TrimSpace(d.Login))
	d.Email = normalizeEmail(d.Email)
	if err := es.Check(u,
		assert.True(loginPattern.MatchString(d.Login), "login must be 2-60 lower case letters, digits or ._-"),
		assert.Email(d.Email, "email"),
		nameCond(d.FirstName, "first name"),
		nameCond(d.LastName, "last name"),
		passCond(d.Pass),
		timezoneCond(d.Timezone),
		localeCond(d.Locale),
	); err != nil {
		return nil, err
	}
	err := es.Create(u, id, UserWasCreated{
		Login:      d.Login,
		Email:      d.Email,
		FirstName:  d.FirstName,
		LastName:   d.LastName,
		Pass:       d.Pass,
		Timezone:   d.Timezone,
		Locale:     d.Locale,
		Registered: now.UTC(),
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) ChangeEmail(email string) error {
	email = normalizeEmail(email)
	return es.Change(u, u.Email, email,
		func(v string) es.Event { return UserEmailWasChanged{Email: v} },
		assert.Email(email, "email"),
	)
}

func (u *User) ChangeFirstName(name string) error {
	return es.Change(u, u.FirstName, name,
		func(v string) es.Event { return UserFirstNameWasChanged{FirstName: v} },
		nameCond(name, "first name"),
	)
}

func (u *User) ChangeLastName(name string) error {
	return es.Change(u, u.LastName, name,
		func(v string) es.Event { return UserLastNameWasChanged{LastName: v} },
		nameCond(name, "last name"),
	)
}

// ChangePass replaces the password hash.
func (u *User) ChangePass(hash string) error {
	return es.Change(u, u.Pass, hash,
		func(v string) es.Event { return UserPassWasChanged{Pass: v} },
		passCond(hash),
	)
}

func (u *User) ChangeTimezone(tz string) error {
	return es.Change(u, u.Timezone, tz,
		func(v string) es.Event { return UserTimezoneWasChanged{Timezone: v} },
		timezoneCond(tz),
	)
}

func (u *User) ChangeLocale(locale string) error {
	return es.Change(u, u.Locale, locale,
		func(v string) es.Event { return UserLocaleWasChanged{Locale: v} },
		localeCond(locale),
	)
}

// ChangeMeta sets key to value. An empty value removes the key.
func (u *User) ChangeMeta(key, value string) error {
	return es.Change(u, u.Meta.Value(key), value,
		func(v string) es.Event { return UserMetaWasChanged{Key: key, Value: v} },
		assert.NotBlank(key, "meta key"),
		assert.MaxLen(key, 191, "meta key"),
	)
}

// StampModified records the modification time when the user has recorded
// other events since it was loaded and is not deleted.
func (u *User) StampModified(now time.Time) error {
	if !u.HasRecordedEvents() || u.State() == es.StateDeleted {
		return nil
	}
	return es.RecordEvent(u, UserModifiedWasChanged{Modified: now.UTC()})
}

func (u *User) Delete(id es.ID) error { return es.Delete(u, id, UserWasDeleted{}) }

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool { return CheckPassword(u.Pass, password) }

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func nameCond(name, field string) assert.Cond {
	return assert.All(assert.NotBlank(name, field), assert.MaxLen(name, 191, field))
}

func passCond(hash string) assert.Cond {
	return assert.True(isHash(hash), "pass must be a password hash")
}

func timezoneCond(tz string) assert.Cond {
	return assert.True(validTimezone(tz), "timezone must be an IANA zone")
}

func localeCond(locale string) assert.Cond {
	return assert.All(assert.NotBlank(locale, "locale"), assert.MaxLen(locale, 10, "locale"))
}

func validTimezone(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

var _ es.Aggregate = (*User)(nil)
