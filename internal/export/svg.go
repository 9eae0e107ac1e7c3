// Package export renders recorded signals to standalone SVG documents.
package export

import (
	"fmt"
	"math"
	"strings"
)

// SeriesToSVG draws values against times as a polyline. NaN samples break
// the line. It returns "" when fewer than two samples are plottable.
func SeriesToSVG(times, values []float64, width, height int, strokeColor, caption string) string {
	n := len(times)
	if len(values) < n {
		n = len(values)
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	valid := 0
	for i := 0; i < n; i++ {
		if math.IsNaN(values[i]) {
			continue
		}
		valid++
		minX = math.Min(minX, times[i])
		maxX = math.Max(maxX, times[i])
		minY = math.Min(minY, values[i])
		maxY = math.Max(maxY, values[i])
	}
	if valid < 2 {
		return ""
	}

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	lo, hi := minY, maxY
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="`,
		width, height, width, height, strokeColor))

	pen := "M"
	for i := 0; i < n; i++ {
		if math.IsNaN(values[i]) {
			pen = "M"
			continue
		}
		x := (times[i] - minX) / rangeX * float64(width)
		y := float64(height) - (values[i]-minY)/rangeY*float64(height)

		if pen == "M" && i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(fmt.Sprintf("%s%.1f,%.1f", pen, x, y))
		pen = " L"
	}
	sb.WriteString(`"/>
`)

	if caption != "" {
		sb.WriteString(fmt.Sprintf(`<text x="8" y="16" fill="#888888" font-family="monospace" font-size="12">%s [%.3g, %.3g]</text>
`, escape(caption), lo, hi))
	}

	sb.WriteString(`</svg>`)
	return sb.String()
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
