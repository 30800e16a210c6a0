package model

// Intent is a closed category of user request. The string value is the function name
// exposed to the classifier and echoed back in the response envelope.
type Intent string

const (
	IntentRecognizeFace  Intent = "recognize_face"
	IntentExtractText    Intent = "extract_text"
	IntentSaveFace       Intent = "save_face"
	IntentSaveScreenshot Intent = "save_screenshot"
	IntentDescribeScene  Intent = "describe_scene"
	IntentDailyRecap     Intent = "daily_recap"
)

// Intents returns every supported intent in declaration order
func Intents() []Intent {
	return []Intent{
		IntentRecognizeFace,
		IntentExtractText,
		IntentSaveFace,
		IntentSaveScreenshot,
		IntentDescribeScene,
		IntentDailyRecap,
	}
}

// Valid reports whether the intent belongs to the closed set
func (x Intent) Valid() bool {
	for _, i := range Intents() {
		if i == x {
			return true
		}
	}
	return false
}

func (x Intent) String() string { return string(x) }

// Arguments holds intent arguments keyed by parameter name
type Arguments map[string]any

// String returns the named argument when it is a string, or "" otherwise
func (a Arguments) String(name string) string {
	if v, ok := a[name].(string); ok {
		return v
	}
	return ""
}

// ResolvedCall is a classified query whose arguments already satisfy the intent schema
type ResolvedCall struct {
	Intent    Intent
	Arguments Arguments
}
