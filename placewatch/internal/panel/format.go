package panel

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/hazyhaar/reviewbuddy/place"
)

// Placeholder texts shown instead of missing data.
const (
	NoPlaceName   = "Place name not found."
	NoAddress     = "Address not found."
	NoScore       = "Score unavailable."
	starWidthPx   = 23
	skeletonScore = `<div class="skeleton-container"><div class="skeleton-rating"><div class="skeleton-glimmer"></div></div><div class="skeleton-stars"><div class="skeleton-glimmer"></div></div></div>`
)

// View is what the panel currently shows.
type View struct {
	Record *place.Record `json:"record,omitempty"`
	Score  place.Score   `json:"score"`
}

// NameText returns the name line, or its placeholder.
func (v View) NameText() string {
	if v.Record == nil {
		return NoPlaceName
	}
	return v.Record.Name
}

// AddressText returns the address line, or its placeholder.
func (v View) AddressText() string {
	if v.Record == nil {
		return NoAddress
	}
	return v.Record.Address
}

// StarWidth is the filled width in pixels of the star bar for score.
func StarWidth(score float64) float64 {
	return math.Floor(score)*starWidthPx + math.Mod(score, 1)*starWidthPx
}

// ScoreHTML renders the score region for s.
func ScoreHTML(s place.Score) string {
	switch s.State {
	case place.ScoreLoading:
		return skeletonScore
	case place.ScoreValue:
		v := strconv.FormatFloat(s.Value, 'f', -1, 64)
		w := strconv.FormatFloat(StarWidth(s.Value), 'f', -1, 64)
		return fmt.Sprintf(`<div>%s <span class="stars" aria-label="Rated %s out of 5," role="img">`+
			`<div aria-hidden="true"><span style="width:calc(%spx)"></span></div></span></div>`, v, v, w)
	default:
		return `<div class="score-unavailable">` + NoScore + `</div>`
	}
}

// HTML renders the panel body for v as a standalone fragment.
func HTML(v View) string {
	var sb strings.Builder
	sb.WriteString(`<div class="review-buddy">`)
	sb.WriteString(`<h2>` + html.EscapeString(v.NameText()) + `</h2>`)
	sb.WriteString(`<p>` + html.EscapeString(v.AddressText()) + `</p>`)
	switch v.Score.State {
	case place.ScoreValue:
		sb.WriteString(`<p><strong>AI review score:</strong> ` + v.Score.String() + ` / 5</p>`)
	case place.ScoreLoading:
		sb.WriteString(`<p><em>Loading score…</em></p>`)
	default:
		sb.WriteString(`<p><em>` + NoScore + `</em></p>`)
	}
	sb.WriteString(`</div>`)
	return sb.String()
}

// Markdown renders v as markdown, for text-only consumers.
func Markdown(v View) (string, error) {
	md, err := htmltomarkdown.ConvertString(HTML(v))
	if err != nil {
		return "", fmt.Errorf("panel: markdown: %w", err)
	}
	return md, nil
}
