package proctor

import "strings"

// Event is a raw browser event as forwarded by the test page.
type Event struct {
	Type       string `json:"type"`
	Key        string `json:"key,omitempty"`
	Ctrl       bool   `json:"ctrl,omitempty"`
	Meta       bool   `json:"meta,omitempty"`
	Alt        bool   `json:"alt,omitempty"`
	Visibility string `json:"visibility,omitempty"` // visible|hidden
	Fullscreen *bool  `json:"fullscreen,omitempty"`
}

// Classify maps a browser event to a violation category. Fullscreen changes
// are stateful and handled by Guard.Observe, not here.
func Classify(ev Event) (Category, bool) {
	switch strings.ToLower(ev.Type) {
	case "copy", "paste", "cut":
		return Clipboard, true
	case "contextmenu":
		return ContextMenu, true
	case "keydown":
		if forbiddenShortcut(ev) {
			return Keyboard, true
		}
	case "visibilitychange":
		if ev.Visibility == "hidden" {
			return TabSwitch, true
		}
	case "blur":
		return WindowBlur, true
	}
	return "", false
}

func forbiddenShortcut(ev Event) bool {
	switch ev.Key {
	case "F12", "PrintScreen":
		return true
	case "Tab":
		return ev.Alt
	}
	if ev.Ctrl || ev.Meta {
		switch strings.ToLower(ev.Key) {
		case "c", "v", "x", "p":
			return true
		}
	}
	return false
}
