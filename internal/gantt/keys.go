package gantt

import "strings"

// Key is a keyboard event delivered by the dashboard while the timeline
// is mounted.
type Key struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Meta  bool   `json:"meta"`
	Shift bool   `json:"shift"`
}

// Command is the timeline action bound to a key.
type Command string

const (
	CommandNone        Command = "none"
	CommandUndo        Command = "undo"
	CommandRedo        Command = "redo"
	CommandCancelDrag  Command = "cancel_drag"
	CommandPanelShrink Command = "panel_shrink"
	CommandPanelGrow   Command = "panel_grow"
)

// CommandFor maps a key event to a command. Ctrl and Meta (Cmd) are
// interchangeable for undo and redo.
func CommandFor(k Key) Command {
	mod := k.Ctrl || k.Meta
	switch {
	case k.Key == "Escape":
		return CommandCancelDrag
	case mod && strings.EqualFold(k.Key, "z") && k.Shift:
		return CommandRedo
	case mod && strings.EqualFold(k.Key, "z"):
		return CommandUndo
	case mod && strings.EqualFold(k.Key, "y"):
		return CommandRedo
	case k.Ctrl && k.Key == "ArrowLeft":
		return CommandPanelShrink
	case k.Ctrl && k.Key == "ArrowRight":
		return CommandPanelGrow
	}
	return CommandNone
}
