package session

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type Panel string

const (
	PanelVideo      Panel = "video"
	PanelWhiteboard Panel = "whiteboard"
)

type DisplayMode string

const (
	DisplayVideo      DisplayMode = "video"
	DisplayWhiteboard DisplayMode = "whiteboard"
	DisplaySplit      DisplayMode = "split"
)

// PanelState состояние встроенной панели провайдера
type PanelState struct {
	Mounted  bool   `json:"mounted"`
	Failed   bool   `json:"failed"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
}

// ParsePanel разбирает имя панели
func ParsePanel(raw string) (Panel, error) {
	switch p := Panel(strings.ToLower(strings.TrimSpace(raw))); p {
	case PanelVideo, PanelWhiteboard:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPanel, raw)
	}
}

// ParseDisplayMode разбирает режим отображения
func ParseDisplayMode(raw string) (DisplayMode, error) {
	switch m := DisplayMode(strings.ToLower(strings.TrimSpace(raw))); m {
	case DisplayVideo, DisplayWhiteboard, DisplaySplit:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDisplay, raw)
	}
}

// Видео смонтировано всегда, звук урока идёт через него
func mountedIn(mode DisplayMode, panel Panel) bool {
	if panel == PanelVideo {
		return true
	}
	return mode == DisplayWhiteboard || mode == DisplaySplit
}

func newPanels(mode DisplayMode) map[Panel]PanelState {
	return map[Panel]PanelState{
		PanelVideo:      {Mounted: mountedIn(mode, PanelVideo)},
		PanelWhiteboard: {Mounted: mountedIn(mode, PanelWhiteboard)},
	}
}

// SetDisplayMode монтирует и размонтирует панели. Ошибка размонтированной панели сбрасывается
func (s *Session) SetDisplayMode(mode DisplayMode) error {
	if _, err := ParseDisplayMode(string(mode)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return ErrSessionTerminated
	}

	s.display = mode
	for panel, st := range s.panels {
		st.Mounted = mountedIn(mode, panel)
		if !st.Mounted {
			st.Failed = false
			st.Error = ""
		}
		s.panels[panel] = st
	}

	s.logger.Debug("Display mode changed", zap.String("display", string(mode)))
	return nil
}

// ReportPanelError помечает сбой одной панели, остальные продолжают работать
func (s *Session) ReportPanelError(panel Panel, message string) error {
	if _, err := ParsePanel(string(panel)); err != nil {
		return err
	}

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return ErrSessionTerminated
	}
	st := s.panels[panel]
	if st.Failed {
		s.mu.Unlock()
		return nil
	}
	st.Failed = true
	st.Error = message
	s.panels[panel] = st
	n := s.noticeLocked(NoticePanelFailed, fmt.Sprintf("The %s panel stopped working. You can retry it without leaving the lesson.", panel))
	n.Panel = panel
	n.Retryable = true
	presenter := s.presenter
	s.mu.Unlock()

	s.logger.Warn("Session panel failed",
		zap.String("panel", string(panel)),
		zap.String("error", message),
	)

	s.deliver(presenter, n)
	return nil
}

// RetryPanel перемонтирует сбойную панель
func (s *Session) RetryPanel(panel Panel) error {
	if _, err := ParsePanel(string(panel)); err != nil {
		return err
	}

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return ErrSessionTerminated
	}
	st := s.panels[panel]
	if !st.Failed {
		s.mu.Unlock()
		return nil
	}
	st.Failed = false
	st.Error = ""
	st.Attempts++
	st.Mounted = mountedIn(s.display, panel)
	s.panels[panel] = st
	n := s.noticeLocked(NoticePanelRestored, fmt.Sprintf("The %s panel was reloaded.", panel))
	n.Panel = panel
	presenter := s.presenter
	s.mu.Unlock()

	s.deliver(presenter, n)
	return nil
}
