package sph

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrLoggedOut signals that a fetched page is the portal's "session
// expired" rendering rather than actual content. It warrants exactly one
// login-and-retry, nothing more.
var ErrLoggedOut = errors.New("no longer logged in to the portal")

// Alerts are the bootstrap alert boxes the portal renders into otherwise
// valid pages. A danger alert on a content page means the session is gone.
type Alerts struct {
	Warnings []string
	Dangers  []string
}

func CollectAlerts(doc *goquery.Document) Alerts {
	var alerts Alerts

	doc.Find("div").Each(func(_ int, div *goquery.Selection) {
		classAttr := div.AttrOr("class", "")
		if classAttr == "" {
			return
		}

		isAlert := false
		isWarning := false
		isDanger := false
		for _, token := range strings.Fields(classAttr) {
			if strings.HasPrefix(token, "alert") {
				isAlert = true
			}
			if strings.Contains(token, "warning") {
				isWarning = true
			}
			if strings.Contains(token, "danger") {
				isDanger = true
			}
		}
		if !isAlert {
			return
		}

		text := normalizeText(div.Text())
		switch {
		case isDanger:
			alerts.Dangers = append(alerts.Dangers, text)
		case isWarning && !ignorableWarning(text):
			alerts.Warnings = append(alerts.Warnings, text)
		}
	})

	return alerts
}

func (a Alerts) LoggedOut() bool {
	return len(a.Dangers) > 0
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// the plan page shows an empty-table notice as a warning alert, that one
// is expected and carries no signal
func ignorableWarning(text string) bool {
	return strings.HasPrefix(text, "Keine Einträge")
}
