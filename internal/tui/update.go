package tui

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"livechat/internal/chat"
)

// bubbletea messages for asynchronous events: a session state change, a
// failed send.
type (
	sessionChangedMsg struct{}
	sendFailedMsg     struct{ err error }
)

func (model *Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		// global quit
		if typedMessage.Type == tea.KeyCtrlC {
			model.leaveSession()
			return model, tea.Quit
		}
		switch model.mode {
		case modeMenu:
			switch typedMessage.String() {
			case "1", "j", "J":
				model.mode = modeNamePrompt
				model.textInput.SetValue(model.displayName)
				model.textInput.Placeholder = "Enter display name…"
				model.textInput.Prompt = "name> "
				focusCmd := model.textInput.Focus()
				return model, focusCmd
			case "q", "Q", "2":
				return model, tea.Quit
			}
			return model, nil
		case modeNamePrompt:
			switch typedMessage.Type {
			case tea.KeyEnter:
				trimmed := strings.TrimSpace(model.textInput.Value())
				if trimmed == "" {
					model.notice("Display name cannot be empty.")
					return model, nil
				}
				model.displayName = trimmed
				model.mode = modeRoomPrompt
				model.textInput.SetValue(firstRecent(model.recentRooms))
				model.textInput.Placeholder = "Enter room id…"
				model.textInput.Prompt = "room> "
				focusCmd := model.textInput.Focus()
				return model, focusCmd
			case tea.KeyEsc:
				model.toMenu()
				return model, nil
			default:
				var cmd tea.Cmd
				model.textInput, cmd = model.textInput.Update(typedMessage)
				return model, cmd
			}
		case modeRoomPrompt:
			switch typedMessage.Type {
			case tea.KeyEnter:
				trimmed := strings.TrimSpace(model.textInput.Value())
				if trimmed == "" {
					return model, nil
				}
				model.roomID = trimmed
				model.mode = modeChat
				model.textInput.SetValue("")
				model.textInput.Placeholder = "Type a message…"
				model.textInput.Prompt = "> "
				focusCmd := model.textInput.Focus()
				return model, tea.Batch(focusCmd, model.joinRoom())
			case tea.KeyEsc:
				model.toMenu()
				return model, nil
			default:
				var cmd tea.Cmd
				model.textInput, cmd = model.textInput.Update(typedMessage)
				return model, cmd
			}
		case modeChat:
			switch typedMessage.Type {
			case tea.KeyEsc:
				model.leaveSession()
				model.toMenu()
				return model, nil
			case tea.KeyEnter:
				trimmed := strings.TrimSpace(model.textInput.Value())
				if strings.HasPrefix(trimmed, "/") {
					switch strings.ToLower(trimmed) {
					case "/quit", "/exit":
						model.leaveSession()
						return model, tea.Quit
					case "/leave":
						model.leaveSession()
						model.toMenu()
						return model, nil
					}
					return model, nil
				}
				if trimmed != "" {
					// the timeline grows only when the server echoes the
					// message back; the input is cleared right away.
					model.textInput.SetValue("")
					return model, model.sendCmd(trimmed)
				}
			}
			var command tea.Cmd
			model.textInput, command = model.textInput.Update(typedMessage)
			return model, command
		}

	case sessionChangedMsg:
		if model.session == nil {
			return model, nil
		}
		model.snapshot = model.session.Snapshot()
		if model.snapshot.Closed() || model.snapshot.Errored() {
			// terminal: nothing further will be published.
			return model, nil
		}
		return model, model.waitForChange()

	case sendFailedMsg:
		model.notice(sendFailureText(typedMessage.err))
		return model, nil
	}
	return model, nil
}

// joinRoom creates the session for the chosen room and starts watching it.
func (model *Model) joinRoom() tea.Cmd {
	model.updates = make(chan struct{}, 1)
	updates := model.updates
	model.session = chat.NewSession(chat.Config{Endpoint: model.endpoint}, model.roomID, model.userID, model.displayName)
	model.unsubscribe = model.session.Subscribe(func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	model.snapshot = model.session.Snapshot()
	return tea.Batch(model.waitForChange(), model.rememberCmd())
}

// waitForChange blocks until the session publishes, then feeds the event
// loop. Scheduled again after every change, one read at a time.
func (model *Model) waitForChange() tea.Cmd {
	updates := model.updates
	return func() tea.Msg {
		<-updates
		return sessionChangedMsg{}
	}
}

// rememberCmd records the identity and room in the local registries.
func (model *Model) rememberCmd() tea.Cmd {
	store, userID, displayName, roomID := model.store, model.userID, model.displayName, model.roomID
	return func() tea.Msg {
		if store == nil {
			return nil
		}
		ctx := context.Background()
		_ = store.TouchIdentity(ctx, userID, displayName)
		_ = store.TouchRoom(ctx, roomID)
		return nil
	}
}

func (model *Model) sendCmd(text string) tea.Cmd {
	snapshot := model.snapshot
	return func() tea.Msg {
		if err := snapshot.Send(text); err != nil {
			return sendFailedMsg{err: err}
		}
		return nil
	}
}

func (model *Model) leaveSession() {
	if model.unsubscribe != nil {
		model.unsubscribe()
		model.unsubscribe = nil
	}
	if model.session != nil {
		model.session.Release()
		model.session = nil
	}
	model.snapshot = chat.Snapshot{}
}

func (model *Model) toMenu() {
	model.mode = modeMenu
	model.textInput.SetValue("")
	model.textInput.Blur()
	model.textInput.Placeholder = ""
	model.textInput.Prompt = ""
}

func (model *Model) notice(text string) {
	model.notices = append(model.notices, text)
}

func firstRecent(rooms []string) string {
	if len(rooms) == 0 {
		return ""
	}
	return rooms[0]
}

func sendFailureText(err error) string {
	switch {
	case errors.Is(err, chat.ErrNotReady):
		return "Still connecting; your message was not sent."
	case errors.Is(err, chat.ErrClosed):
		return "The session is closed; your message was not sent."
	case errors.Is(err, chat.ErrFailed):
		return "The session failed; your message was not sent."
	default:
		return "Send failed: " + err.Error()
	}
}
