package tui

import (
	"context"
	"os"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"livechat/internal/chat"
	"livechat/internal/storage"
)

// Model holds the bubbletea state for the chat client: the input, the current
// mode, and the live session whose snapshots drive the chat view.
type Model struct {
	endpoint string
	store    *storage.Store

	textInput textinput.Model
	mode      appMode
	notices   []string

	roomID      string
	userID      string
	displayName string
	recentRooms []string

	session     *chat.Session
	unsubscribe func()
	updates     chan struct{}
	snapshot    chat.Snapshot
}

type appMode int

const (
	modeMenu appMode = iota
	modeNamePrompt
	modeRoomPrompt
	modeChat
)

// New builds a chat ui model. When roomID and displayName are both provided
// it skips the prompts and joins immediately; otherwise it starts at the
// menu, seeded with the locally saved identity and recently joined rooms.
func New(endpoint string, store *storage.Store, roomID, userID, displayName string) *Model {
	input := textinput.New()
	input.Placeholder = "Type a message…"
	input.CharLimit = 0
	input.Focus()
	input.Prompt = "> "

	if displayName == "" {
		displayName = defaultDisplayName()
	}
	if userID == "" {
		userID = uuid.NewString()
	}

	model := &Model{
		endpoint:    endpoint,
		store:       store,
		textInput:   input,
		roomID:      roomID,
		userID:      userID,
		displayName: displayName,
		updates:     make(chan struct{}, 1),
	}
	model.loadRegistries()

	if roomID == "" {
		model.mode = modeMenu
		model.textInput.Blur()
		model.textInput.Prompt = ""
		model.textInput.Placeholder = ""
	} else {
		model.mode = modeChat
	}
	return model
}

func defaultDisplayName() string {
	if name := os.Getenv("LIVECHAT_NAME"); name != "" {
		return name
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return ""
}

// loadRegistries pulls the saved identity and recent rooms. Best effort: a
// missing or broken store just means empty prompts.
func (model *Model) loadRegistries() {
	if model.store == nil {
		return
	}
	ctx := context.Background()
	if model.displayName == "" {
		if identity, err := model.store.DefaultIdentity(ctx); err == nil && identity != nil {
			model.userID = identity.UserID
			model.displayName = identity.DisplayName
		}
	}
	if visits, err := model.store.ListRooms(ctx); err == nil {
		for _, visit := range visits {
			model.recentRooms = append(model.recentRooms, visit.RoomID)
		}
	}
}

// Init joins immediately when the room is already known.
func (model *Model) Init() tea.Cmd {
	if model.mode == modeChat {
		return model.joinRoom()
	}
	return nil
}
