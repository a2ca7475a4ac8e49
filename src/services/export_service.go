package services

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"math/big"
	"strings"

	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/GokhanYmn/NakitAkisGrafana/src/security/validation"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const reportTimeLayout = "02/01/2006 15:04"
const reportDateLayout = "02/01/2006"

// FormatAmount renders money the way Turkish reports print it: 1.234.567,89.
func FormatAmount(d decimal.Decimal) string {
	return formatFixed(d, 2)
}

// formatFixed groups the digits of d rounded to places without going
// through float64, so amounts near MaxAmount print exactly.
func formatFixed(d decimal.Decimal, places int32) string {
	whole, frac, _ := strings.Cut(d.StringFixed(places), ".")
	negative := strings.HasPrefix(whole, "-")
	n, ok := new(big.Int).SetString(strings.TrimPrefix(whole, "-"), 10)
	if !ok {
		return d.StringFixed(places)
	}
	out := strings.ReplaceAll(humanize.BigComma(n), ",", ".")
	if frac != "" {
		out += "," + frac
	}
	if negative {
		out = "-" + out
	}
	return out
}

// FormatPercent renders a fraction as a Turkish percent: 0.45 -> %45,00.
func FormatPercent(rate decimal.Decimal) string {
	return "%" + FormatPercentNumber(rate.Mul(decimal.NewFromInt(100)))
}

// FormatPercentNumber renders an already scaled percentage: 12.5 -> 12,50.
func FormatPercentNumber(p decimal.Decimal) string {
	return formatFixed(p, 2)
}

// FormatWholeAmount is FormatAmount without the fraction: 1.500.000.
func FormatWholeAmount(d decimal.Decimal) string {
	return formatFixed(d, 0)
}

// FormatCount groups thousands with dots: 1250 -> 1.250.
func FormatCount(n int) string {
	return humanize.FormatFloat("#.###,", float64(n))
}

type exportServiceImpl struct{}

// NewExportService creates the CSV/HTML snapshot renderer.
func NewExportService() ExportService {
	return &exportServiceImpl{}
}

type reportLine struct {
	Label string
	Value string
}

func parameterLines(p models.AccrualParameters) []reportLine {
	lines := []reportLine{
		{"Faiz Oranı", FormatPercent(p.AnnualRate)},
		{"Model Faiz Oranı", FormatPercent(p.EffectiveModelRate())},
		{"Model", modelLabel(p.Model)},
		{"Kaynak Kuruluş", p.SourceInstitution},
	}
	if p.FundNumber != "" {
		lines = append(lines, reportLine{"Fon No", p.FundNumber})
	}
	if len(p.SelectedFunds) > 0 {
		lines = append(lines, reportLine{"Seçilen Fonlar", strings.Join(p.SelectedFunds, ", ")})
	}
	if p.IssuanceNumber != "" {
		lines = append(lines, reportLine{"İhraç No", p.IssuanceNumber})
	}
	if p.StartFrom != nil {
		lines = append(lines, reportLine{"Başlangıç Tarihi", p.StartFrom.Format(reportDateLayout)})
	}
	if p.StartTo != nil {
		lines = append(lines, reportLine{"Bitiş Tarihi", p.StartTo.Format(reportDateLayout)})
	}
	if len(p.Counterparties) > 0 {
		lines = append(lines, reportLine{"Seçilen Bankalar", strings.Join(p.Counterparties, ", ")})
	}
	return lines
}

func modelLabel(m models.ModelStrategy) string {
	if m == models.ModelCompound {
		return "Bileşik"
	}
	return "Basit"
}

func statusLines(r models.AccrualResult) []reportLine {
	var lines []reportLine
	if r.Degraded {
		lines = append(lines, reportLine{"Durum", "Veri kaynağına ulaşılamadı: " + r.DegradedReason})
	}
	if r.Clamped {
		lines = append(lines, reportLine{"Uyarı", "Tutarlar azami değere kırpıldı"})
	}
	return lines
}

func (s *exportServiceImpl) WriteCSV(w io.Writer, report models.Report) error {
	res := report.Result
	rows := [][]string{
		{"Nakit Akış Analizi Raporu"},
		{"Rapor Tarihi", report.GeneratedAt.Format(reportTimeLayout)},
		{},
		{"PARAMETRELER"},
	}
	for _, l := range parameterLines(report.Parameters) {
		rows = append(rows, []string{l.Label, validation.SanitizeForFormulaInjection(l.Value)})
	}
	rows = append(rows,
		[]string{},
		[]string{"SONUÇLAR"},
		[]string{"Metrik", "Tutar (₺)", "Yüzde (%)"},
		[]string{"Toplam Faiz Tutarı", res.RealInterestTotal.StringFixed(2), ""},
		[]string{"Model Faiz Tutarı", res.ModelInterestTotal.StringFixed(2), ""},
		[]string{"Fark Tutarı", res.DifferenceAmount.StringFixed(2), ""},
		[]string{"Fark Yüzdesi", "", res.DifferencePercentage.StringFixed(2)},
		[]string{"Kayıt Sayısı", fmt.Sprint(res.RecordCount), ""},
	)
	for _, l := range statusLines(res) {
		rows = append(rows, []string{l.Label, validation.SanitizeForFormulaInjection(l.Value)})
	}

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv report: %w", err)
	}
	return nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Nakit Akış Analizi Raporu</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { text-align: center; margin-bottom: 30px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; }
        .negative { color: #c0392b; }
        .status { color: #b9770e; font-weight: bold; }
    </style>
</head>
<body>
    <div class="header">
        <h1>NAKİT AKIŞ ANALİZİ RAPORU</h1>
        <p>Rapor Tarihi: {{.GeneratedAt}}</p>
    </div>
    <div class="parameters">
        <h2>Analiz Parametreleri</h2>
        {{range .Parameters}}<p><strong>{{.Label}}:</strong> {{.Value}}</p>
        {{end}}
    </div>
    {{range .Status}}<p class="status">{{.Label}}: {{.Value}}</p>
    {{end}}
    <div class="results">
        <h2>Analiz Sonuçları</h2>
        <table>
            <thead>
                <tr><th>Metrik</th><th>Tutar (₺)</th><th>Yüzde (%)</th></tr>
            </thead>
            <tbody>
                <tr><td>Toplam Faiz Tutarı</td><td>₺{{.Real}}</td><td>-</td></tr>
                <tr><td>Model Faiz Tutarı</td><td>₺{{.Model}}</td><td>-</td></tr>
                <tr><td>Fark Tutarı</td><td{{if .Negative}} class="negative"{{end}}>₺{{.Difference}}</td><td>-</td></tr>
                <tr><td>Fark Yüzdesi</td><td>-</td><td{{if .Negative}} class="negative"{{end}}>{{.Percentage}}%</td></tr>
                <tr><td>Kayıt Sayısı</td><td>{{.Count}}</td><td>-</td></tr>
            </tbody>
        </table>
    </div>
</body>
</html>
`))

type reportView struct {
	GeneratedAt string
	Parameters  []reportLine
	Status      []reportLine
	Real        string
	Model       string
	Difference  string
	Percentage  string
	Count       string
	Negative    bool
}

func (s *exportServiceImpl) WriteHTML(w io.Writer, report models.Report) error {
	res := report.Result
	view := reportView{
		GeneratedAt: report.GeneratedAt.Format(reportTimeLayout),
		Parameters:  parameterLines(report.Parameters),
		Status:      statusLines(res),
		Real:        FormatAmount(res.RealInterestTotal),
		Model:       FormatAmount(res.ModelInterestTotal),
		Difference:  FormatAmount(res.DifferenceAmount),
		Percentage:  FormatPercentNumber(res.DifferencePercentage),
		Count:       FormatCount(res.RecordCount),
		Negative:    res.DifferenceAmount.IsNegative(),
	}
	if err := reportTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("failed to render html report: %w", err)
	}
	return nil
}
