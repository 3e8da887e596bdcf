package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/Freeeeeet/lessonroom/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrBookingNotFound   = model.ErrBookingNotFound
	ErrInvalidTransition = model.ErrInvalidTransition
)

const bookingColumns = `id, teacher_ref, student_ref, subject, scheduled_date, start_time, end_time,
	status, room_id, created_at, updated_at`

// allowedFrom статусы, из которых разрешён переход в целевой
var allowedFrom = map[model.BookingStatus][]model.BookingStatus{
	model.BookingStatusConfirmed: {model.BookingStatusPending},
	model.BookingStatusCompleted: {model.BookingStatusConfirmed},
	model.BookingStatusCancelled: {model.BookingStatusPending, model.BookingStatusConfirmed},
}

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(pool)}
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var booking model.Booking
	err := row.Scan(
		&booking.ID,
		&booking.TeacherRef,
		&booking.StudentRef,
		&booking.Subject,
		&booking.ScheduledDate,
		&booking.StartTime,
		&booking.EndTime,
		&booking.Status,
		&booking.RoomID,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	return r.getByID(ctx, r.Pool(), id, false)
}

// GetByIDForUpdate блокирует строку бронирования до конца транзакции
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, q base.Querier, id int64) (*model.Booking, error) {
	return r.getByID(ctx, q, id, true)
}

func (r *BookingRepository) getByID(ctx context.Context, q base.Querier, id int64, forUpdate bool) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	booking, err := scanBooking(q.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// GetByParticipant бронирования, где ссылка совпадает с одним из каналов участника
func (r *BookingRepository) GetByParticipant(ctx context.Context, refs []string, statuses []model.BookingStatus) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE (student_ref = ANY($1) OR teacher_ref = ANY($1))
		  AND status = ANY($2)
		ORDER BY scheduled_date, start_time
	`

	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	rows, err := r.Pool().Query(ctx, query, refs, names)
	if err != nil {
		return nil, fmt.Errorf("get bookings by participant: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return bookings, nil
}

// SetStatus переводит бронирование в новый статус вне транзакции
func (r *BookingRepository) SetStatus(ctx context.Context, id int64, status model.BookingStatus) error {
	return r.UpdateStatus(ctx, r.Pool(), id, status)
}

// transitionSources статусы, из которых допустим переход, включая сам целевой
func transitionSources(status model.BookingStatus) ([]string, error) {
	from, ok := allowedFrom[status]
	if !ok {
		return nil, fmt.Errorf("%w: to %s", ErrInvalidTransition, status)
	}

	names := make([]string, 0, len(from)+1)
	for _, s := range from {
		names = append(names, string(s))
	}
	return append(names, string(status)), nil
}

// UpdateStatus переводит бронирование в новый статус.
// Повторный перевод в тот же статус проходит без ошибки.
func (r *BookingRepository) UpdateStatus(ctx context.Context, q base.Querier, id int64, status model.BookingStatus) error {
	names, err := transitionSources(status)
	if err != nil {
		return err
	}

	query := `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)
	`

	affected, err := base.ExecAffected(ctx, q, query, status, id, names)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Строки нет или статус не подходит
	current, err := r.getByID(ctx, q, id, false)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrBookingNotFound
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
}
