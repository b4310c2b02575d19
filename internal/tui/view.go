package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"livechat/internal/chat"
)

var (
	appTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	subtitleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).MarginTop(1)
	menuBoxStyle       = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(1, 2).MarginTop(1)
	menuItemStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).PaddingLeft(1)
	menuHotkeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	menuHintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
	noticeBoxStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("95")).Padding(1, 2).MarginTop(1)
	chatHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle     = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle    = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	closedStyle        = statusStyle.Copy().Foreground(lipgloss.Color("244")).Bold(true)
	messageBodyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
	messageBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	inputBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	timestampStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	usernameStyle      = lipgloss.NewStyle().Bold(true)
	activeUserStyle    = usernameStyle.Copy().Foreground(lipgloss.Color("213"))
	systemMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	errorStyle         = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	dividerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(" ┃ ")
	userColorPalette   = []lipgloss.Color{
		lipgloss.Color("45"),
		lipgloss.Color("81"),
		lipgloss.Color("141"),
		lipgloss.Color("98"),
		lipgloss.Color("63"),
		lipgloss.Color("135"),
		lipgloss.Color("32"),
	}
)

func (model *Model) View() string {
	switch model.mode {
	case modeMenu:
		return model.renderMenuView()
	case modeNamePrompt:
		return model.renderPromptView("Choose a display name", "Enter the name others will see, then press Enter.")
	case modeRoomPrompt:
		return model.renderPromptView("Join a room", "Enter the room id and press Enter to connect.")
	default:
		return model.renderChatView()
	}
}

func (model *Model) renderMenuView() string {
	title := appTitleStyle.Render("LiveChat")
	subtitle := subtitleStyle.Render("Live session chat from your terminal")

	options := []string{
		renderMenuOption("1", "Join a room"),
		renderMenuOption("2", "Quit"),
	}

	viewSections := []string{
		lipgloss.JoinVertical(lipgloss.Left, title, subtitle),
		menuBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, options...)),
	}

	if len(model.recentRooms) > 0 {
		recent := "Recent rooms: " + strings.Join(model.recentRooms, ", ")
		viewSections = append(viewSections, menuHintStyle.Render(recent))
	}

	if notices := model.renderNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}

	viewSections = append(viewSections, menuHintStyle.Render("Press 1 to join or 2 to quit."))

	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model *Model) renderPromptView(title, hint string) string {
	header := appTitleStyle.Render(title)
	hintText := menuHintStyle.Render(hint)

	viewSections := []string{header, hintText}

	if notices := model.renderNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}

	viewSections = append(viewSections, inputBoxStyle.Render(model.textInput.View()))

	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model *Model) renderChatView() string {
	headerSegments := []string{
		"LiveChat",
		fmt.Sprintf("Room %s", model.roomID),
		fmt.Sprintf("User %s", model.displayName),
		fmt.Sprintf("Server %s", model.endpoint),
	}
	header := chatHeaderStyle.Render(strings.Join(headerSegments, dividerStyle))

	snapshot := model.snapshot
	var statusLine string
	switch {
	case snapshot.Errored():
		statusLine = errorStyle.Render("Session failed: " + snapshot.Err.Error())
	case snapshot.Closed():
		statusLine = closedStyle.Render(closeText(snapshot))
	case snapshot.Ready():
		statusLine = connectedStyle.Render("Connected")
	default:
		statusLine = connectingStyle.Render("Connecting…")
	}

	var messageLines []string
	for _, message := range snapshot.Timeline {
		messageLines = append(messageLines, model.renderChatMessage(message))
	}
	if len(messageLines) == 0 {
		messageLines = append(messageLines, systemMessageStyle.Render("No messages yet. Say hi and start the conversation."))
	}

	messagesView := messageBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, messageLines...))
	inputView := inputBoxStyle.Render(model.textInput.View())
	footerHint := menuHintStyle.Render("Commands: /leave to return to the menu, /quit to exit")

	sections := []string{header, statusLine, messagesView}
	if notices := model.renderNotices(); notices != "" {
		sections = append(sections, notices)
	}
	sections = append(sections, inputView, footerHint)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func closeText(snapshot chat.Snapshot) string {
	if snapshot.CloseReason != "" {
		return fmt.Sprintf("Session closed (%d: %s)", snapshot.CloseCode, snapshot.CloseReason)
	}
	return fmt.Sprintf("Session closed (%d)", snapshot.CloseCode)
}

func renderMenuOption(hotkey string, label string) string {
	key := menuHotkeyStyle.Render(hotkey)
	return lipgloss.JoinHorizontal(lipgloss.Left, key, menuItemStyle.Render(label))
}

func (model *Model) renderNotices() string {
	if len(model.notices) == 0 {
		return ""
	}
	var notices []string
	for _, text := range model.notices {
		notices = append(notices, systemMessageStyle.Render(text))
	}
	return noticeBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, notices...))
}

func (model *Model) renderChatMessage(message chat.Message) string {
	timestamp := timestampStyle.Render(fmt.Sprintf("[%s]", message.Timestamp.Local().Format("15:04:05")))

	var nameStyle lipgloss.Style
	if message.UserID == model.userID {
		nameStyle = activeUserStyle
	} else {
		nameStyle = usernameStyle.Copy().Foreground(colorForUser(message.DisplayName))
	}

	name := nameStyle.Render(message.DisplayName)
	bodyText := messageBodyStyle.Render(strings.ReplaceAll(message.Text, "\n", "\n   "))

	return lipgloss.JoinHorizontal(lipgloss.Left, timestamp, " ", name, ": ", bodyText)
}

func colorForUser(name string) lipgloss.Color {
	if len(userColorPalette) == 0 {
		return lipgloss.Color("249")
	}
	if name == "" {
		return userColorPalette[0]
	}
	var sum int
	for _, r := range name {
		sum += int(r)
	}
	return userColorPalette[sum%len(userColorPalette)]
}
