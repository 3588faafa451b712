package color

import (
	"github.com/fatih/color"
)

var (
	promptColor  = color.New(color.FgCyan, color.Bold)
	infoColor    = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	tutorColor   = color.New(color.FgHiYellow, color.Bold)
	mutedColor   = color.New(color.FgHiBlack)
)

// Disable turns colors off for every helper, e.g. for --no-color or piped output.
func Disable() {
	color.NoColor = true
}

func ColorPrompt(s string) string {
	return promptColor.Sprint(s)
}

func ColorInfo(s string) string {
	return infoColor.Sprint(s)
}

func ColorWarning(s string) string {
	return warningColor.Sprint(s)
}

func ColorError(s string) string {
	return errorColor.Sprint(s)
}

func ColorTutor(s string) string {
	return tutorColor.Sprint(s)
}

func ColorMuted(s string) string {
	return mutedColor.Sprint(s)
}
