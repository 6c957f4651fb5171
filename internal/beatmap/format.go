package beatmap

import (
	"fmt"
	"time"
)

// FormatLength renders a track length as "minutes:seconds". The seconds
// remainder is deliberately not zero-padded: 65 renders as "1:5", 0 as
// "0:0". Downstream consumers have keyed on this shape for years, so it is
// pinned by tests rather than corrected.
func FormatLength(totalSeconds int) string {
	minutes := totalSeconds / 60
	seconds := totalSeconds - minutes*60
	return fmt.Sprintf("%d:%d", minutes, seconds)
}

// apiTimeLayout is the timestamp format the osu! API uses for approval dates.
const apiTimeLayout = "2006-01-02 15:04:05"

// FormatApprovedDate renders an API timestamp as "October 6, 2007".
// Unparseable input (including the empty string for unranked sets) is passed
// through verbatim; the footer it feeds is cosmetic.
func FormatApprovedDate(raw string) string {
	t, err := time.Parse(apiTimeLayout, raw)
	if err != nil {
		return raw
	}
	return t.Format("January 2, 2006")
}
