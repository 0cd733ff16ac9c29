// ABOUTME: SubRip subtitle writer for rendered sessions
// ABOUTME: Builds one cue per captioned chunk on the session timeline
package echo

import (
	"fmt"
	"io"
	"strings"
)

// minCueMS is the shortest cue the writer emits
const minCueMS = 200

// WriteSRT writes segments as SRT cues. Segments without text are
// skipped and cue numbers stay contiguous.
func WriteSRT(w io.Writer, segments []Segment, useTranslated bool) error {
	idx := 1
	for _, seg := range segments {
		text := seg.Text
		if useTranslated {
			text = seg.TranslatedText
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		start := max(0, seg.StartMS)
		end := max(start+minCueMS, seg.EndMS)
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n", idx, formatSRTTime(start), formatSRTTime(end), text); err != nil {
			return fmt.Errorf("failed to write cue %d: %w", idx, err)
		}
		idx++
	}
	return nil
}

// formatSRTTime renders milliseconds as HH:MM:SS,mmm
func formatSRTTime(ms int64) string {
	h := ms / 3600000
	ms %= 3600000
	m := ms / 60000
	ms %= 60000
	s := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
