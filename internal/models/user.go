package models

// User is the account shown by the user fragment and carried by the shell session.
type User struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Email       string           `json:"email"`
	Avatar      string           `json:"avatar,omitempty"`
	Role        string           `json:"role,omitempty"`
	Preferences *UserPreferences `json:"preferences,omitempty"`
}

type UserPreferences struct {
	Theme             string `json:"theme"`
	Language          string `json:"language"`
	Notifications     bool   `json:"notifications"`
	EmailUpdates      bool   `json:"emailUpdates"`
	PushNotifications bool   `json:"pushNotifications"`
	MarketingEmails   bool   `json:"marketingEmails"`
}
