package importer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	templateSheet     = "Import"
	instructionsSheet = "Instructions"
)

// BuildTemplate renders the downloadable workbook for an entity: header row, one description
// row and the example rows on the first sheet, a field reference on the second.
func BuildTemplate(entity EntityType, defs []FieldDefinition, examples [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return nil, errors.Wrap(err, "rename template sheet")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "header style")
	}
	requiredStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "required style")
	}
	descStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Italic: true, Color: "595959", Size: 9},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "description style")
	}

	for i, def := range defs {
		header, _ := excelize.CoordinatesToCellName(i+1, 1)
		desc, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(templateSheet, header, def.Label); err != nil {
			return nil, errors.Wrap(err, "write header")
		}
		style := headerStyle
		if def.Required {
			style = requiredStyle
		}
		_ = f.SetCellStyle(templateSheet, header, header, style)
		_ = f.SetCellValue(templateSheet, desc, DescribeField(def))
		_ = f.SetCellStyle(templateSheet, desc, desc, descStyle)

		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(templateSheet, col, col, 22)
	}

	for r, example := range examples {
		for c, value := range example {
			if c >= len(defs) {
				break
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+3)
			if err := f.SetCellValue(templateSheet, cell, value); err != nil {
				return nil, errors.Wrap(err, "write example")
			}
		}
	}
	_ = f.SetPanes(templateSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if _, err := f.NewSheet(instructionsSheet); err != nil {
		return nil, errors.Wrap(err, "instructions sheet")
	}
	_ = f.SetCellValue(instructionsSheet, "A1", fmt.Sprintf("Import instructions: %s", entity))
	_ = f.SetCellValue(instructionsSheet, "A2", "Delete the description row (row 2) and the example rows before uploading. Orange columns are required.")
	for c, title := range []string{"Column", "Field", "Required", "Type", "Allowed values", "Default", "Also recognised as", "Description"} {
		cell, _ := excelize.CoordinatesToCellName(c+1, 4)
		_ = f.SetCellValue(instructionsSheet, cell, title)
		_ = f.SetCellStyle(instructionsSheet, cell, cell, headerStyle)
	}
	for i, def := range defs {
		row := i + 5
		required := "Optional"
		if def.Required {
			required = "Required"
		}
		values := []interface{}{
			def.Label, def.Key, required, string(def.Type), strings.Join(def.EnumValues, ", "),
			defaultText(def), strings.Join(def.Aliases, ", "), def.Description,
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			_ = f.SetCellValue(instructionsSheet, cell, v)
		}
	}
	for col, width := range map[string]float64{"A": 24, "B": 18, "C": 12, "D": 10, "E": 30, "F": 12, "G": 40, "H": 60} {
		_ = f.SetColWidth(instructionsSheet, col, col, width)
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "write template")
	}
	return buf.Bytes(), nil
}

// DescribeField is the machine-readable description row text for a field.
func DescribeField(def FieldDefinition) string {
	parts := []string{"optional"}
	if def.Required {
		parts[0] = "required"
	}
	parts = append(parts, string(def.Type))
	if len(def.EnumValues) > 0 {
		parts = append(parts, "values: "+strings.Join(def.EnumValues, "|"))
	}
	if def.Type == FieldArray {
		sep := def.ArraySeparator
		if sep == "" {
			sep = ","
		}
		parts = append(parts, fmt.Sprintf("separator: %q", sep))
	}
	if d := defaultText(def); d != "" {
		parts = append(parts, "default: "+d)
	}
	return strings.Join(parts, "; ")
}

func defaultText(def FieldDefinition) string {
	switch v := def.DefaultValue.(type) {
	case nil:
		return ""
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}
