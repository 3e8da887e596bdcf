package model

import "time"

type User struct {
	ID               int64     `json:"id"`
	TelegramID       int64     `json:"telegram_id"`
	AuthID           string    `json:"auth_id"` // идентификатор внешнего провайдера авторизации
	Email            string    `json:"email"`
	Username         string    `json:"username"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	IsTeacher        bool      `json:"is_teacher"`
	TeacherProfileID *string   `json:"teacher_profile_id"` // обратная ссылка на профиль учителя
	CreatedAt        time.Time `json:"created_at"`
}
