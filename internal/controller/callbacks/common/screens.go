package common

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Freeeeeet/lessonroom/internal/controller/callbacks/common/formatting"
	"github.com/Freeeeeet/lessonroom/internal/controller/callbacks/common/keyboard"
	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/Freeeeeet/lessonroom/internal/session"
	"github.com/go-telegram/bot/models"
)

// Callback data
const (
	JoinLesson          = "join:"                  // join:booking_id
	SessionStatus       = "session_status:"        // session_status:session_id
	SessionEnd          = "session_end:"           // session_end:session_id
	SessionLeaveConfirm = "session_leave_confirm:" // session_leave_confirm:session_id
	SessionStay         = "session_stay:"          // session_stay:session_id
	SessionDisplay      = "display:"               // display:session_id:mode
	PanelRetry          = "panel_retry:"           // panel_retry:session_id:panel
	MyLessons           = "my_lessons"
)

var panelOrder = []session.Panel{session.PanelVideo, session.PanelWhiteboard}

var panelLabels = map[session.Panel]string{
	session.PanelVideo:      "🎥 Video",
	session.PanelWhiteboard: "🖍 Whiteboard",
}

// SessionScreen карточка открытой сессии с кнопками управления
func SessionScreen(snap session.Snapshot, booking model.Booking) (string, *models.InlineKeyboardMarkup) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "🎓 Lesson #%d", booking.ID)
	if booking.Subject != "" {
		fmt.Fprintf(&sb, ": %s", booking.Subject)
	}
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "👤 You are the %s\n", snap.Role)
	if snap.Running {
		fmt.Fprintf(&sb, "⏱ Lesson time: %s\n", formatting.FormatClock(snap.Elapsed))
	} else if snap.Elapsed > 0 {
		fmt.Fprintf(&sb, "⏱ Lesson time: %s (stopped)\n", formatting.FormatClock(snap.Elapsed))
	} else {
		sb.WriteString("⏱ The timer starts when you are connected\n")
	}
	fmt.Fprintf(&sb, "👥 In the room: %d\n", snap.Participants)

	if snap.Deadline != nil && snap.Watchdog == "armed" {
		fmt.Fprintf(&sb, "⏳ Waiting for the teacher until %s\n", formatting.FormatDateTime(*snap.Deadline))
	}
	if !snap.Online {
		sb.WriteString("📡 Connection lost\n")
	}

	sb.WriteString("\n")
	for _, p := range panelOrder {
		display := formatting.GetPanelStateDisplay(snap.Panels[p])
		fmt.Fprintf(&sb, "%s: %s %s\n", panelLabels[p], display.Emoji, display.Text)
	}

	if snap.Terminated {
		fmt.Fprintf(&sb, "\n🏁 Session closed (%s)", snap.Reason)
		return sb.String(), nil
	}

	kb := keyboard.NewBuilder()
	for _, p := range panelOrder {
		if st := snap.Panels[p]; st.Mounted && st.Failed {
			kb.Row(keyboard.Button("🔄 Retry "+string(p), keyboard.Data(PanelRetry, snap.ID, string(p))))
		}
	}
	kb.Row(
		keyboard.Button(modeLabel(snap.Display, session.DisplayVideo, "Video"), keyboard.Data(SessionDisplay, snap.ID, string(session.DisplayVideo))),
		keyboard.Button(modeLabel(snap.Display, session.DisplayWhiteboard, "Board"), keyboard.Data(SessionDisplay, snap.ID, string(session.DisplayWhiteboard))),
		keyboard.Button(modeLabel(snap.Display, session.DisplaySplit, "Split"), keyboard.Data(SessionDisplay, snap.ID, string(session.DisplaySplit))),
	)
	kb.Row(
		keyboard.Button("🔃 Refresh", keyboard.Data(SessionStatus, snap.ID)),
		keyboard.Button("🏁 End lesson", keyboard.Data(SessionEnd, snap.ID)),
	)

	return sb.String(), kb.Build()
}

func modeLabel(current, mode session.DisplayMode, label string) string {
	if current == mode {
		return "• " + label
	}
	return label
}

// LeaveConfirmScreen подтверждение выхода из идущего урока
func LeaveConfirmScreen(sessionID string) (string, *models.InlineKeyboardMarkup) {
	text := "⚠️ The lesson is in progress. Leaving now ends it for you.\n\nLeave the lesson?"
	kb := keyboard.NewBuilder().
		Row(
			keyboard.Button("🚪 Leave", keyboard.Data(SessionLeaveConfirm, sessionID)),
			keyboard.Button("↩️ Stay", keyboard.Data(SessionStay, sessionID)),
		).
		Build()
	return text, kb
}

// LessonsScreen ближайшие подтверждённые уроки с кнопками входа
func LessonsScreen(bookings []*model.Booking) (string, *models.InlineKeyboardMarkup) {
	if len(bookings) == 0 {
		return "📅 You have no confirmed lessons.\n\nJoin by number: /join <booking number>", nil
	}

	var sb strings.Builder
	sb.WriteString("📅 Your confirmed lessons:\n\n")

	kb := keyboard.NewBuilder()
	for _, b := range bookings {
		display := formatting.GetBookingStatusDisplay(b.Status)
		fmt.Fprintf(&sb, "%s #%d %s %s %s\n", display.Emoji, b.ID, b.ScheduledDate, b.StartTime, b.Subject)
		kb.Row(keyboard.Button(
			fmt.Sprintf("▶️ Join #%d", b.ID),
			JoinLesson+strconv.FormatInt(b.ID, 10),
		))
	}

	return sb.String(), kb.Build()
}

// NoticeKeyboard кнопки к уведомлению сессии
func NoticeKeyboard(n session.Notice) *models.InlineKeyboardMarkup {
	kb := keyboard.NewBuilder()

	switch n.Kind {
	case session.NoticeAutoEnd, session.NoticeTimeWarning:
		kb.Row(keyboard.Button("🏁 End now", keyboard.Data(SessionEnd, n.SessionID)))
	case session.NoticePanelFailed:
		if n.Retryable {
			kb.Row(keyboard.Button("🔄 Retry", keyboard.Data(PanelRetry, n.SessionID, string(n.Panel))))
		}
	case session.NoticeClosed:
		if n.Destination == session.DestinationBookings {
			kb.Row(keyboard.Button("📅 My lessons", MyLessons))
		}
	}

	return kb.Build()
}

// NoticeText текст уведомления для чата
func NoticeText(n session.Notice) string {
	switch n.Kind {
	case session.NoticeAutoEnd:
		if n.CountdownSeconds > 0 {
			return fmt.Sprintf("⏰ %s (%d s)", n.Text, n.CountdownSeconds)
		}
		return "⏰ " + n.Text
	case session.NoticeTimeWarning:
		return "⏰ " + n.Text
	case session.NoticeParticipantJoined:
		return "👋 " + n.Text
	case session.NoticeParticipantLeft:
		return "🚶 " + n.Text
	case session.NoticeConnectionLost, session.NoticeConnectionRestored:
		return "📡 " + n.Text
	case session.NoticePanelFailed:
		return "⚠️ " + n.Text
	case session.NoticePanelRestored:
		return "🔄 " + n.Text
	case session.NoticeClosed:
		return "🏁 " + n.Text
	default:
		return n.Text
	}
}
