// Package members ведёт реестр участников сообщества.
// Леджер знает только user_id; имена и юзернеймы живут здесь.
package members

import (
	"fmt"
	"time"
)

// Member — запись участника в реестре.
type Member struct {
	UserID    int64     `db:"user_id"`
	Username  *string   `db:"username"`   // без «@», nil если не задан
	FirstName string    `db:"first_name"`
	LastName  *string   `db:"last_name"`
	IsAdmin   bool      `db:"is_admin"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DisplayName возвращает отображаемое имя: @username, затем имя с
// фамилией, в крайнем случае числовой ID.
func (m *Member) DisplayName() string {
	if m.Username != nil && *m.Username != "" {
		return "@" + *m.Username
	}
	if m.FirstName != "" {
		if m.LastName != nil && *m.LastName != "" {
			return m.FirstName + " " + *m.LastName
		}
		return m.FirstName
	}
	return fmt.Sprintf("id%d", m.UserID)
}
