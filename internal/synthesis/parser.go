package synthesis

import "strings"

// skipMarker is the literal token the model emits for frames it was told to
// pass over (intros, outros, non-interactive screens).
const skipMarker = "SKIP"

// parseResponse extracts the thought and action lines from raw model output.
// Markers are matched case-insensitively at line starts. A lone action with
// no thought gets a placeholder thought synthesized from the action; a
// response with no action is unusable.
func parseResponse(text string) (thought, action string, ok bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "thought:"):
			thought = strings.TrimSpace(line[len("thought:"):])
		case strings.HasPrefix(lower, "action:"):
			action = strings.TrimSpace(line[len("action:"):])
		}
	}

	if action == "" {
		return "", "", false
	}
	if thought == "" {
		thought = "Perform the action: " + action
	}
	return thought, action, true
}

// containsSkipMarker reports whether the model explicitly declined the frame.
// The marker is the literal uppercase token; prose like "Skip the intro ad,
// then tap Next" is a real instruction, not a decline. A bare "skip" action
// in any casing still counts.
func containsSkipMarker(thought, action string) bool {
	if strings.EqualFold(strings.TrimSpace(action), skipMarker) {
		return true
	}
	return strings.Contains(action, skipMarker) || strings.Contains(thought, skipMarker)
}

// introOutroPhrases match thoughts describing video framing rather than UI
// interaction; only consulted while no step has been accepted yet.
var introOutroPhrases = []string{
	"intro",
	"outro",
	"title card",
	"title screen",
	"opening screen",
	"subscribe button",
	"subscribe to",
	"channel logo",
	"thumbnail",
	"welcome screen",
}

func isIntroOutroThought(thought string) bool {
	lower := strings.ToLower(thought)
	for _, phrase := range introOutroPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// lowValuePhrases match generic screen narration that carries no actionable
// instruction.
var lowValuePhrases = []string{
	"the screen shows",
	"the screen displays",
	"this screen shows",
	"the image shows",
	"the image displays",
	"we can see",
	"loading screen",
}

func isLowValueThought(thought string) bool {
	lower := strings.ToLower(thought)
	for _, phrase := range lowValuePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
