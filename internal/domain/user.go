package domain

import "time"

type User struct {
	ID                     string     `json:"id"`
	Name                   string     `json:"name"`
	Email                  string     `json:"email"`
	HashedPassword         string     `json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
	TempHashedPassword     string     `json:"-"`
	TempHashedPasswordTime *time.Time `json:"-"`
	ImageURL               string     `json:"image_url,omitempty"`
}

// Profile es la proyeccion publica de un usuario, sin id ni secretos.
type Profile struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ImageURL  string    `json:"image_url,omitempty"`
}

// HasPendingReset indica si hay un reset emitido y no consumido.
// Ambos campos temporales deben estar presentes.
func (u User) HasPendingReset() bool {
	return u.TempHashedPassword != "" && u.TempHashedPasswordTime != nil
}

// SetPendingReset guarda el hash del token de reset y su hora de emision.
func (u *User) SetPendingReset(tokenHash string, issuedAt time.Time) {
	at := issuedAt.UTC()
	u.TempHashedPassword = tokenHash
	u.TempHashedPasswordTime = &at
}

// ClearPendingReset borra los dos campos temporales juntos.
func (u *User) ClearPendingReset() {
	u.TempHashedPassword = ""
	u.TempHashedPasswordTime = nil
}

func (u User) Profile() Profile {
	return Profile{
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		ImageURL:  u.ImageURL,
	}
}
