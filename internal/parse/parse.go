// Package parse extracts structured shipment fields from free-text lines.
// Parsing is a pure function: a malformed line yields nil, which is a normal
// "no match" outcome rather than an error.
package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// Line is a parsed shipment line: "CODE PALLETS BOXES GROSS".
type Line struct {
	ClientCode string
	Pallets    int
	Boxes      int
	GrossKg    float64
	SourceText string
}

// Item is a parsed intake item line: "PALLETS BOXES GROSS".
type Item struct {
	Pallets int
	Boxes   int
	GrossKg float64
}

// Edit is a parsed correction reply: "CODE BOXES GROSS" or
// "CODE PALLETS BOXES GROSS". Pallets is nil for the three-field form.
type Edit struct {
	ClientCode string
	Pallets    *int
	Boxes      int
	GrossKg    float64
}

// The client code is the first word-sequence: letters (Latin or Cyrillic),
// digits, hyphen, underscore, dot. E.g. "M255-D", "88880-8829A".
var lineRe = regexp.MustCompile(`^([A-Za-zА-Яа-я0-9][A-Za-zА-Яа-я0-9._-]*)\s+(\d+)\s+(\d+)\s+(\d+(?:[.,]\d+)?)(?:\s|$)`)

var itemRe = regexp.MustCompile(`^(\d+)\s+(\d+)\s+(\d+(?:[.,]\d+)?)(?:\s|$)`)

// A leading Cyrillic "С" followed by digits is almost always a mistyped
// Latin "C" (codes like С001); normalise it before upper-casing.
var cyrillicC = regexp.MustCompile(`^[Сс](\d)`)

// ShipmentLine parses a "CODE PALLETS BOXES GROSS" line.
// Returns nil if the line doesn't match or a numeric field is malformed.
func ShipmentLine(raw string) *Line {
	if raw == "" {
		return nil
	}
	text := strings.Join(strings.Fields(raw), " ")

	m := lineRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	code := cyrillicC.ReplaceAllString(m[1], "C$1")
	code = strings.ToUpper(code)

	pallets, err := strconv.Atoi(m[2])
	if err != nil {
		return nil
	}
	boxes, err := strconv.Atoi(m[3])
	if err != nil {
		return nil
	}
	gross, err := parseWeight(m[4])
	if err != nil {
		return nil
	}

	return &Line{
		ClientCode: code,
		Pallets:    pallets,
		Boxes:      boxes,
		GrossKg:    gross,
		SourceText: strings.TrimSpace(raw),
	}
}

// ItemLine parses a "PALLETS BOXES GROSS" intake item line.
// Returns nil if the line doesn't match.
func ItemLine(raw string) *Item {
	m := itemRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil
	}

	pallets, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	boxes, err := strconv.Atoi(m[2])
	if err != nil {
		return nil
	}
	gross, err := parseWeight(m[3])
	if err != nil {
		return nil
	}

	return &Item{Pallets: pallets, Boxes: boxes, GrossKg: gross}
}

// EditLine parses a correction reply: three fields (code, boxes, gross) or
// four (code, pallets, boxes, gross). Returns nil on any malformed field.
func EditLine(raw string) *Edit {
	parts := strings.Fields(raw)
	if len(parts) < 3 || len(parts) > 4 {
		return nil
	}

	i := 0
	code := cyrillicC.ReplaceAllString(parts[i], "C$1")
	code = strings.ToUpper(code)
	i++

	var pallets *int
	if len(parts) == 4 {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return nil
		}
		pallets = &n
		i++
	}

	boxes, err := strconv.Atoi(parts[i])
	if err != nil || boxes < 0 {
		return nil
	}
	i++

	gross, err := parseWeight(parts[i])
	if err != nil || gross < 0 {
		return nil
	}

	return &Edit{ClientCode: code, Pallets: pallets, Boxes: boxes, GrossKg: gross}
}

// parseWeight accepts either "." or "," as the decimal separator.
func parseWeight(raw string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
}
