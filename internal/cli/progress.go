package cli

import (
	"fmt"
	"strings"
)

// ─── Progress Bar ───────────────────────────────────────────────────────────
// Level progress for the status screen:
// [=============>................]  45% │ 55 XP to level 3

const barWidth = 30 // Characters for the progress bar

// renderBar draws pct (0..100) as a fixed-width bar.
func renderBar(pct float64) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	filled := int(pct / 100 * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	empty := barWidth - filled

	var bar string
	if filled == barWidth {
		bar = strings.Repeat("=", filled)
	} else if filled > 0 {
		bar = strings.Repeat("=", filled-1) + ">" + strings.Repeat(".", empty)
	} else {
		bar = strings.Repeat(".", barWidth)
	}
	return fmt.Sprintf("[%s] %3.0f%%", goodStyle.Render(bar), pct)
}

// levelLine is the bar plus the distance to the next level.
func levelLine(pct float64, toNext int64, nextLevel int) string {
	return fmt.Sprintf("%s │ %s", renderBar(pct), mutedStyle.Render(fmt.Sprintf("%d XP to level %d", toNext, nextLevel)))
}
