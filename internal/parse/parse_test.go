package parse

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShipmentLine_WellFormed(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		code    string
		pallets int
		boxes   int
		gross   float64
	}{
		{"plain", "C001 1 24 345.35", "C001", 1, 24, 345.35},
		{"comma decimal", "C001 1 24 345,35", "C001", 1, 24, 345.35},
		{"integer weight", "C001 2 10 300", "C001", 2, 10, 300},
		{"hyphenated code", "M255-D 1 24 345.35", "M255-D", 1, 24, 345.35},
		{"numeric code", "88880-8829A 3 7 12.5", "88880-8829A", 3, 7, 12.5},
		{"lowercase code upper-cased", "c001 1 24 345.35", "C001", 1, 24, 345.35},
		{"cyrillic С normalised", "С001 1 24 345.35", "C001", 1, 24, 345.35},
		{"extra whitespace collapsed", "  C001   1  24   345.35  ", "C001", 1, 24, 345.35},
		{"trailing text ignored", "C001 1 24 345.35 от Ивана", "C001", 1, 24, 345.35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := ShipmentLine(tt.raw)
			require.NotNil(t, line)
			assert.Equal(t, tt.code, line.ClientCode)
			assert.Equal(t, tt.pallets, line.Pallets)
			assert.Equal(t, tt.boxes, line.Boxes)
			assert.InDelta(t, tt.gross, line.GrossKg, 1e-9)
		})
	}
}

func TestShipmentLine_RoundTripsWeightToTwoDecimals(t *testing.T) {
	line := ShipmentLine("C001 1 24 345.35")
	require.NotNil(t, line)
	assert.Equal(t, "345.35", fmt.Sprintf("%.2f", line.GrossKg))
}

func TestShipmentLine_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"missing weight", "C001 1 24"},
		{"missing boxes", "C001 1"},
		{"non-numeric weight", "C001 1 24 heavy"},
		{"non-numeric boxes", "C001 1 x 345.35"},
		{"negative pallets", "C001 -1 24 345.35"},
		{"free text", "привет, груз пришёл?"},
		{"weight before counts", "C001 345.35 1 24"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, ShipmentLine(tt.raw))
		})
	}
}

func TestShipmentLine_PreservesSourceText(t *testing.T) {
	line := ShipmentLine("  C001 1 24 345.35\n")
	require.NotNil(t, line)
	assert.Equal(t, "C001 1 24 345.35", line.SourceText)
}

func TestItemLine(t *testing.T) {
	item := ItemLine("2 18 250,75")
	require.NotNil(t, item)
	assert.Equal(t, 2, item.Pallets)
	assert.Equal(t, 18, item.Boxes)
	assert.InDelta(t, 250.75, item.GrossKg, 1e-9)

	assert.Nil(t, ItemLine("C001 1 24 345.35"), "item lines carry no code")
	assert.Nil(t, ItemLine("2 18"))
}

func TestEditLine(t *testing.T) {
	t.Run("three fields leaves pallets unchanged", func(t *testing.T) {
		edit := EditLine("C001 24 345.35")
		require.NotNil(t, edit)
		assert.Equal(t, "C001", edit.ClientCode)
		assert.Nil(t, edit.Pallets)
		assert.Equal(t, 24, edit.Boxes)
		assert.InDelta(t, 345.35, edit.GrossKg, 1e-9)
	})

	t.Run("four fields sets pallets", func(t *testing.T) {
		edit := EditLine("C001 2 24 345,35")
		require.NotNil(t, edit)
		require.NotNil(t, edit.Pallets)
		assert.Equal(t, 2, *edit.Pallets)
	})

	t.Run("malformed", func(t *testing.T) {
		assert.Nil(t, EditLine("C001"))
		assert.Nil(t, EditLine("C001 24"))
		assert.Nil(t, EditLine("C001 a 345.35"))
		assert.Nil(t, EditLine("C001 1 24 345.35 extra"))
	})
}
