// Package proctor tracks test-integrity violations reported by the browser.
package proctor

// Category names a class of violation.
type Category string

const (
	Clipboard   Category = "clipboard"
	ContextMenu Category = "contextmenu"
	Keyboard    Category = "keyboard"
	TabSwitch   Category = "tabswitch"
	WindowBlur  Category = "windowblur"
	Fullscreen  Category = "fullscreen"
)

// Categories in display order.
var Categories = []Category{Clipboard, ContextMenu, Keyboard, TabSwitch, WindowBlur, Fullscreen}

var categoryInfo = map[Category]struct {
	label       string
	warning     string
	preventable bool
}{
	Clipboard:   {"Tentatives de copier-coller", "Copier-coller n'est pas autorisé pendant ce test.", true},
	ContextMenu: {"Ouvertures du menu contextuel", "Le menu contextuel n'est pas autorisé pendant ce test.", true},
	Keyboard:    {"Raccourcis clavier interdits", "Les raccourcis clavier ne sont pas autorisés pendant ce test.", true},
	TabSwitch:   {"Changements d'onglet", "Vous avez quitté l'onglet du test. Cela sera signalé.", false},
	WindowBlur:  {"Sorties de la fenêtre", "Vous avez quitté la fenêtre du test. Cela sera signalé.", false},
	Fullscreen:  {"Sorties du mode plein écran", "Vous avez quitté le mode plein écran. Cela sera signalé.", false},
}

func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	_, ok := categoryInfo[c]
	return c, ok
}

func (c Category) Valid() bool {
	_, ok := categoryInfo[c]
	return ok
}

// Label is the human-readable name used in the violation summary.
func (c Category) Label() string {
	if i, ok := categoryInfo[c]; ok {
		return i.label
	}
	return string(c)
}

// Warning is the transient message shown after a violation.
func (c Category) Warning() string {
	return categoryInfo[c].warning
}

// Preventable reports whether the browser should cancel the default action.
// Tab switches, window blur and fullscreen exits are only observed.
func (c Category) Preventable() bool {
	return categoryInfo[c].preventable
}
