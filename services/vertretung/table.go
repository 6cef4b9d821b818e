package vertretung

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sphnotify/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const dayIdLayout = "02_01_2006"

// PlanFilter selects the rows a user cares about: the class string must
// appear in the Klasse cell and the subject must start with one of the
// configured prefixes.
type PlanFilter struct {
	Class    string
	Subjects []string
}

var requiredColumns = []string{"Klasse", "Stunde", "Fach", "Raum", "Hinweis", "Hinweis2"}

// ParsePlan walks every per-day block of the substitution plan page and
// collects the rows matching the filter. Days strictly before today are
// skipped.
func ParsePlan(doc *goquery.Document, filter PlanFilter, now time.Time) ([]Event, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, timezone.Location)

	var events []Event
	var dayErr error
	doc.Find("div[id^=tag]").EachWithBreak(func(_ int, day *goquery.Selection) bool {
		id := day.AttrOr("id", "")
		date, err := time.ParseInLocation(dayIdLayout, strings.TrimPrefix(id, "tag"), timezone.Location)
		if err != nil {
			slog.Warn("skipping day block with unparseable id", "id", id)
			return true
		}
		if date.Before(today) {
			slog.Debug("skipping past day", "date", date.Format("02.01.2006"))
			return true
		}

		table := doc.Find(fmt.Sprintf("table[id=%s]", strings.Replace(id, "tag", "vtable", 1)))
		if table.Length() == 0 {
			slog.Warn("day block without a substitution table", "id", id)
			return true
		}

		dayEvents, err := parseDayTable(table, filter, date.Format("02.01.2006"))
		if err != nil {
			dayErr = fmt.Errorf("failed to parse table for day %q: %w", id, err)
			return false
		}
		events = append(events, dayEvents...)
		return true
	})
	if dayErr != nil {
		return nil, dayErr
	}
	return events, nil
}

func parseDayTable(table *goquery.Selection, filter PlanFilter, date string) ([]Event, error) {
	columns := map[string]int{}
	table.Find("th").Each(func(i int, th *goquery.Selection) {
		columns[normalizeCell(th)] = i
	})
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var events []Event
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < len(requiredColumns) {
			return
		}
		cell := func(name string) string {
			return normalizeCell(cells.Eq(columns[name]))
		}

		if !strings.Contains(cell("Klasse"), filter.Class) {
			return
		}
		if !matchesSubject(cell("Fach"), filter.Subjects) {
			return
		}

		note := cell("Hinweis")
		if note2 := cell("Hinweis2"); note2 != "" {
			note = fmt.Sprintf("%s (%s)", note, note2)
		}
		events = append(events, Event{Fields: []Field{
			{Name: "Datum", Value: date},
			{Name: "Klasse", Value: cell("Klasse")},
			{Name: "Stunde", Value: cell("Stunde")},
			{Name: "Fach", Value: cell("Fach")},
			{Name: "Raum", Value: cell("Raum")},
			{Name: "Hinweis", Value: note},
		}})
	})
	return events, nil
}

func matchesSubject(subject string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(subject, prefix) {
			return true
		}
	}
	return false
}

// normalizeCell takes the first non-blank text node. Cells on this page
// may nest markup for struck-through values, the leading text node holds
// the current one.
func normalizeCell(cell *goquery.Selection) string {
	for _, node := range cell.Nodes {
		if text := firstText(node); text != "" {
			return text
		}
	}
	return ""
}

func firstText(node *html.Node) string {
	if node.Type == html.TextNode {
		return strings.Join(strings.Fields(node.Data), " ")
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if text := firstText(child); text != "" {
			return text
		}
	}
	return ""
}
