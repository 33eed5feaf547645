package book

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultWordsPerMinute is the reading speed used for time estimates.
const DefaultWordsPerMinute = 150

// ReadingTime estimates minutes to read words, never less than one.
func ReadingTime(words, wpm int) int {
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	return max(1, int(math.Round(float64(words)/float64(wpm))))
}

// ChapterEstimate labels a chapter's reading time for the table of contents.
func ChapterEstimate(minutes int, loaded bool) string {
	switch {
	case !loaded:
		return "Forthcoming"
	case minutes < 5:
		return "<5 min read"
	case minutes < 60:
		return fmt.Sprintf("~%d min read", minutes/5*5)
	}
	hours := math.Round(10*float64(minutes)/60) / 10
	return "~" + strconv.FormatFloat(hours, 'f', -1, 64) + " hour read"
}

// BookEstimate labels the whole book's reading time.
func BookEstimate(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min read", max(5, minutes/10*10))
	}
	return fmt.Sprintf("~%d hour read", int(math.Round(float64(minutes)/60)))
}

// SplitTitle splits "Title: Subtitle" at the first colon.
func SplitTitle(title string) (string, string) {
	head, sub, ok := strings.Cut(title, ":")
	if !ok {
		return title, ""
	}
	return head, strings.TrimSpace(sub)
}
