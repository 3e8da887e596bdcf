package session

import (
	"strconv"
	"strings"

	"github.com/Freeeeeet/lessonroom/internal/model"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Counterpart вторая роль того же урока
func (r Role) Counterpart() Role {
	if r == RoleTeacher {
		return RoleStudent
	}
	return RoleTeacher
}

// Identity все известные представления одного аккаунта.
// Личность может прийти через разные каналы, поэтому достаточно совпадения по любому.
type Identity struct {
	UserID           string `json:"user_id"`
	AuthID           string `json:"auth_id"`
	Email            string `json:"email"`
	TeacherProfileID string `json:"teacher_profile_id"`
}

// IdentityFromUser собирает Identity из пользователя в базе
func IdentityFromUser(u *model.User) Identity {
	if u == nil {
		return Identity{}
	}

	id := Identity{
		UserID: strconv.FormatInt(u.ID, 10),
		AuthID: u.AuthID,
		Email:  u.Email,
	}
	if u.ID == 0 {
		id.UserID = ""
	}
	if u.TeacherProfileID != nil {
		id.TeacherProfileID = *u.TeacherProfileID
	}
	return id
}

// IsZero проверяет что ни один канал не заполнен
func (id Identity) IsZero() bool {
	return strings.TrimSpace(id.UserID) == "" &&
		strings.TrimSpace(id.AuthID) == "" &&
		strings.TrimSpace(id.Email) == "" &&
		strings.TrimSpace(id.TeacherProfileID) == ""
}

// MatchesStudent сверяет ссылку на студента с каналами вызывающего
func (id Identity) MatchesStudent(ref string) bool {
	return matchRef(ref, id.UserID, id.AuthID) || matchEmail(ref, id.Email)
}

// MatchesTeacher дополнительно учитывает обратную ссылку на профиль учителя
func (id Identity) MatchesTeacher(ref string) bool {
	return matchRef(ref, id.UserID, id.AuthID, id.TeacherProfileID) || matchEmail(ref, id.Email)
}

func matchRef(ref string, channels ...string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	for _, c := range channels {
		c = strings.TrimSpace(c)
		if c != "" && c == ref {
			return true
		}
	}
	return false
}

// Адреса почты сравниваются без учёта регистра
func matchEmail(ref, email string) bool {
	ref = strings.TrimSpace(ref)
	email = strings.TrimSpace(email)
	if ref == "" || email == "" {
		return false
	}
	return strings.EqualFold(ref, email)
}
