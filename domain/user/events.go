package user

import (
	"time"

	"github.com/getdevflow/core-sub003/core/es"
)

type (
	UserWasCreated struct {
		Login      string    `json:"login"`
		Email      string    `json:"email"`
		FirstName  string    `json:"fname"`
		LastName   string    `json:"lname"`
		Pass       string    `json:"pass"`
		Timezone   string    `json:"timezone"`
		Locale     string    `json:"locale"`
		Registered time.Time `json:"registered"`
	}
	UserEmailWasChanged struct {
		Email string `json:"email"`
	}
	UserFirstNameWasChanged struct {
		FirstName string `json:"fname"`
	}
	UserLastNameWasChanged struct {
		LastName string `json:"lname"`
	}
	UserPassWasChanged struct {
		Pass string `json:"pass"`
	}
	UserTimezoneWasChanged struct {
		Timezone string `json:"timezone"`
	}
	UserLocaleWasChanged struct {
		Locale string `json:"locale"`
	}
	// UserMetaWasChanged sets one meta key; an empty Value removes it.
	UserMetaWasChanged struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	UserModifiedWasChanged struct {
		Modified time.Time `json:"modified"`
	}
	UserWasDeleted struct{}
)

func (UserWasCreated) EventType() string          { return "UserWasCreated" }
func (UserEmailWasChanged) EventType() string     { return "UserEmailWasChanged" }
func (UserFirstNameWasChanged) EventType() string { return "UserFirstNameWasChanged" }
func (UserLastNameWasChanged) EventType() string  { return "UserLastNameWasChanged" }
func (UserPassWasChanged) EventType() string      { return "UserPassWasChanged" }
func (UserTimezoneWasChanged) EventType() string  { return "UserTimezoneWasChanged" }
func (UserLocaleWasChanged) EventType() string    { return "UserLocaleWasChanged" }
func (UserMetaWasChanged) EventType() string      { return "UserMetaWasChanged" }
func (UserModifiedWasChanged) EventType() string  { return "UserModifiedWasChanged" }
func (UserWasDeleted) EventType() string          { return "UserWasDeleted" }
func (UserWasDeleted) IsDeletion() bool           { return true }

type Events struct{}

func (Events) RegisterEvents(r *es.EventRegistry) {
	es.RegisterEvent[UserWasCreated](r)
	es.RegisterEvent[UserEmailWasChanged](r)
	es.RegisterEvent[UserFirstNameWasChanged](r)
	es.RegisterEvent[UserLastNameWasChanged](r)
	es.RegisterEvent[UserPassWasChanged](r)
	es.RegisterEvent[UserTimezoneWasChanged](r)
	es.RegisterEvent[UserLocaleWasChanged](r)
	es.RegisterEvent[UserMetaWasChanged](r)
	es.RegisterEvent[UserModifiedWasChanged](r)
	es.RegisterEvent[UserWasDeleted](r)
}
