package entity

import "strings"

// ActionType classifies the normalized prefix of a raw action string. It is
// used for metrics and for the coordinate-requirement gate only; the raw
// action text is what reaches the end user.
type ActionType string

const (
	ActionClick     ActionType = "click"
	ActionScroll    ActionType = "scroll"
	ActionSlide     ActionType = "slide"
	ActionTypeText  ActionType = "type"
	ActionPressBack ActionType = "press_back"
	ActionPressHome ActionType = "press_home"
	ActionOpenApp   ActionType = "open_app"
	ActionComplete  ActionType = "complete"
	ActionWait      ActionType = "wait"
	ActionUnknown   ActionType = "unknown"
)

// ClassifyAction derives the ActionType from a raw action string.
func ClassifyAction(action string) ActionType {
	norm := strings.ToUpper(strings.TrimSpace(action))
	switch {
	case strings.HasPrefix(norm, "CLICK"):
		return ActionClick
	case strings.HasPrefix(norm, "SCROLL"):
		return ActionScroll
	case strings.HasPrefix(norm, "SLIDE"), strings.HasPrefix(norm, "SWIPE"):
		return ActionSlide
	case strings.HasPrefix(norm, "TYPE"):
		return ActionTypeText
	case strings.HasPrefix(norm, "PRESS_BACK"):
		return ActionPressBack
	case strings.HasPrefix(norm, "PRESS_HOME"):
		return ActionPressHome
	case strings.HasPrefix(norm, "OPEN_APP"):
		return ActionOpenApp
	case strings.HasPrefix(norm, "COMPLETE"):
		return ActionComplete
	case strings.HasPrefix(norm, "WAIT"):
		return ActionWait
	default:
		return ActionUnknown
	}
}

// RequiresCoordinates reports whether a step of this type must carry an
// on-screen point to be presentable.
func (t ActionType) RequiresCoordinates() bool {
	return t == ActionClick || t == ActionSlide || t == ActionTypeText
}

// Coordinates is an absolute pixel position within the step's image.
type Coordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BoundingBox is the highlight region rendered around a step's coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Step is one validated, coordinate-annotated instruction derived from one
// accepted frame. Immutable once created.
type Step struct {
	StepNumber  int          `json:"step_number"`
	Frame       string       `json:"frame"`
	Thought     string       `json:"thought"`
	Action      string       `json:"action"`
	ActionType  ActionType   `json:"action_type"`
	Coordinates *Coordinates `json:"coordinates"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
	ImageURI    string       `json:"image_uri,omitempty"`
}

// HistoryEntry is one accepted (thought, action) pair fed back to the
// inference collaborator for context.
type HistoryEntry struct {
	Thought string
	Action  string
}

// ActionHistory grows monotonically as steps are accepted; it is never
// rewound within a synthesis run.
type ActionHistory struct {
	entries []HistoryEntry
}

func (h *ActionHistory) Append(thought, action string) {
	h.entries = append(h.entries, HistoryEntry{Thought: thought, Action: action})
}

func (h *ActionHistory) Len() int { return len(h.entries) }

// Last returns the most recent entry, or false when the history is empty.
func (h *ActionHistory) Last() (HistoryEntry, bool) {
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Window returns up to the last n entries in order.
func (h *ActionHistory) Window(n int) []HistoryEntry {
	if len(h.entries) <= n {
		return h.entries
	}
	return h.entries[len(h.entries)-n:]
}
