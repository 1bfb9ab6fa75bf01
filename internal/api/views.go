package api

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"agrismart.dev/agrismart/internal/localize"
	"agrismart.dev/agrismart/internal/models"
)

const styles = `body{font-family:system-ui,sans-serif;margin:0;background:#f6f8f4;color:#1f2a1c}
header{background:#2f6b2f;color:#fff;padding:.75rem 1.5rem;display:flex;gap:1.25rem;align-items:center}
header a{color:#fff;text-decoration:none}header form{margin-left:auto}
main{max-width:960px;margin:1.5rem auto;padding:0 1rem}
table{border-collapse:collapse;width:100%;background:#fff}th,td{padding:.4rem .6rem;border-bottom:1px solid #dde5d8;text-align:left}
.card{background:#fff;border:1px solid #dde5d8;border-radius:6px;padding:1rem;margin-bottom:1rem}
.error{color:#a11}.muted{color:#667}.alert-high{color:#a11}.alert-medium{color:#a60}
form.auth{display:grid;gap:.5rem;max-width:320px}`

// stylesheet inlines the page styles.
func stylesheet() templ.Component {
	return templ.Raw("<style>" + styles + "</style>")
}

type authForm struct {
	Error string
	Email string
	Name  string
}

type dashboardData struct {
	Name   string
	Fields []models.Field
	Alerts []models.WeatherAlert
}

type fieldPageData struct {
	Field      *models.Field
	Cycles     []models.CropCycle
	Activities []models.FieldActivity
	Soil       []models.SoilAnalysis
}

type languageLink struct {
	Code  string
	Label string
}

var schemeLanguages = []languageLink{
	{localize.English, "English"},
	{localize.Hindi, "हिन्दी"},
	{localize.Marathi, "मराठी"},
}

type statRow struct {
	Label string
	Count int64
}

func statRows(st *Stats) []statRow {
	return []statRow{
		{"Users", st.Users},
		{"Fields", st.Fields},
		{"Crop cycles", st.CropCycles},
		{"Schemes", st.Schemes},
		{"Market prices", st.MarketPrices},
		{"Open sensor alerts", st.OpenAlerts},
	}
}

func activeCycleLabel(f models.Field) string {
	if f.ActiveCycle == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s)", f.ActiveCycle.CropName, f.ActiveCycle.Status)
}

// applyLink reports whether a scheme's application URL is a web link.
func applyLink(sc localize.Scheme) bool {
	return strings.HasPrefix(sc.ApplicationURL, "https://") || strings.HasPrefix(sc.ApplicationURL, "http://")
}

func fieldURL(f models.Field) templ.SafeURL {
	return templ.URL("/fields/" + f.ID.Hex())
}

func schemesURL(lang string) templ.SafeURL {
	return templ.URL("/schemes?lang=" + lang)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "—"
	}
	return t.Format(time.DateOnly)
}

func formatDay(t time.Time) string {
	return t.Format(time.DateOnly)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
