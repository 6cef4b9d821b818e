package vertretung

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"sphnotify/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 9, 1, 8, 0, 0, 0, timezone.Location)

func planDoc(t *testing.T, body string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		fmt.Sprintf("<html><body>%s</body></html>", body),
	))
	require.NoError(t, err)
	return doc
}

func dayBlock(dayId string, rows ...string) string {
	return fmt.Sprintf(`
		<div id="tag%s"><h2>Vertretungen</h2></div>
		<table id="vtable%s">
			<tr>
				<th>Stunde</th><th>Klasse</th><th>Fach</th>
				<th>Raum</th><th>Hinweis</th><th>Hinweis2</th>
			</tr>
			%s
		</table>`, dayId, dayId, strings.Join(rows, "\n"))
}

func row(cells ...string) string {
	var b strings.Builder
	b.WriteString("<tr>")
	for _, c := range cells {
		fmt.Fprintf(&b, "<td>%s</td>", c)
	}
	b.WriteString("</tr>")
	return b.String()
}

func TestParsePlanCollectsMatchingRows(t *testing.T) {
	doc := planDoc(t, dayBlock("01_09_2026",
		row("3", "7C", "M-GK-1", "A101", "Ausfall", ""),
		row("4", "7C", "E-GK-2", "B204", "Vertretung", ""),
		row("5", "8A", "M-GK-1", "A101", "Ausfall", ""),
	))

	events, err := ParsePlan(doc, PlanFilter{Class: "7C", Subjects: []string{"M", "D"}}, testNow)
	require.NoError(t, err)

	want := []Event{{Fields: []Field{
		{Name: "Datum", Value: "01.09.2026"},
		{Name: "Klasse", Value: "7C"},
		{Name: "Stunde", Value: "3"},
		{Name: "Fach", Value: "M-GK-1"},
		{Name: "Raum", Value: "A101"},
		{Name: "Hinweis", Value: "Ausfall"},
	}}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestParsePlanSkipsPastDays(t *testing.T) {
	doc := planDoc(t, strings.Join([]string{
		dayBlock("31_08_2026", row("1", "7C", "M-GK-1", "A101", "Ausfall", "")),
		dayBlock("01_09_2026", row("2", "7C", "M-GK-1", "A101", "Ausfall", "")),
		dayBlock("02_09_2026", row("3", "7C", "M-GK-1", "A101", "Ausfall", "")),
	}, "\n"))

	events, err := ParsePlan(doc, PlanFilter{Class: "7C", Subjects: []string{"M"}}, testNow)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "01.09.2026", events[0].Get("Datum"))
	require.Equal(t, "02.09.2026", events[1].Get("Datum"))
}

func TestParsePlanAppendsSecondNote(t *testing.T) {
	doc := planDoc(t, dayBlock("01_09_2026",
		row("3", "7C", "M-GK-1", "A101", "Vertretung", "bei Frau Schmidt"),
	))

	events, err := ParsePlan(doc, PlanFilter{Class: "7C", Subjects: []string{"M"}}, testNow)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "Vertretung (bei Frau Schmidt)", events[0].Get("Hinweis"))
}

func TestParsePlanTakesLeadingTextOfMarkedUpCells(t *testing.T) {
	doc := planDoc(t, dayBlock("01_09_2026",
		row("3", "7C", "M-GK-1", "<b>B202</b><br/><small>statt A101</small>", "Raumänderung", ""),
	))

	events, err := ParsePlan(doc, PlanFilter{Class: "7C", Subjects: []string{"M"}}, testNow)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "B202", events[0].Get("Raum"))
}

func TestParsePlanClassMatchIsSubstring(t *testing.T) {
	doc := planDoc(t, dayBlock("01_09_2026",
		row("3", "7A, 7C, 7D", "M-GK-1", "A101", "Ausfall", ""),
	))

	events, err := ParsePlan(doc, PlanFilter{Class: "7C", Subjects: []string{"M"}}, testNow)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestParsePlanFailsOnMissingColumn(t *testing.T) {
	doc := planDoc(t, `
		<div id="tag01_09_2026"></div>
		<table id="vtable01_09_2026">
			<tr><th>Stunde</th><th>Klasse</th><th>Fach</th><th>Raum</th><th>Hinweis</th></tr>
		</table>`)

	_, err := ParsePlan(doc, PlanFilter{Class: "7C", Subjects: []string{"M"}}, testNow)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Hinweis2")
}

func TestParsePlanIgnoresUnrelatedDivs(t *testing.T) {
	doc := planDoc(t, `<div id="menu"></div><div id="tagcloud"></div>`)

	events, err := ParsePlan(doc, PlanFilter{Class: "7C", Subjects: []string{"M"}}, testNow)
	require.NoError(t, err)
	require.Empty(t, events)
}
