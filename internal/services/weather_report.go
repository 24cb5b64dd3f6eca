package services

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"
)

// Weather report download formats
const (
	ReportFormatText = "txt"
	ReportFormatHTML = "html"
)

// ErrUnsupportedFormat is returned for report formats other than txt and html
var ErrUnsupportedFormat = errors.New("unsupported report format")

const noForecast = "No forecast available"

var reportHTML = template.Must(template.New("report").Parse(`<html><head><meta charset="utf-8"><title>Weather Report</title></head><body>
<h1>Current weather</h1><pre>{{.Summary}}</pre>
<h2>Forecast</h2><pre>{{.Forecast}}</pre>
</body></html>
`))

// ReportContentType returns the MIME type for a report format
func ReportContentType(format string) (string, error) {
	switch format {
	case ReportFormatText:
		return "text/plain; charset=utf-8", nil
	case ReportFormatHTML:
		return "text/html; charset=utf-8", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// WriteWeatherReport renders the current summary and daily forecast as a
// downloadable text or HTML document
func WriteWeatherReport(w io.Writer, format string, report *WeatherReport) error {
	forecast := forecastText(report)

	switch format {
	case ReportFormatText:
		_, err := fmt.Fprintf(w, "Current weather:\n%s\n\nForecast:\n%s\n", report.Summary, forecast)
		return err
	case ReportFormatHTML:
		return reportHTML.Execute(w, struct{ Summary, Forecast string }{report.Summary, forecast})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func forecastText(report *WeatherReport) string {
	if len(report.Forecast) == 0 {
		return noForecast
	}
	lines := make([]string, 0, len(report.Forecast))
	for _, day := range report.Forecast {
		lines = append(lines, day.String())
	}
	return strings.Join(lines, "\n")
}
