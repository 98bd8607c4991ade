package http

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	pipeline "frostguard/internal/pipeline/domain"
)

// BuildReportPDF renders a pipeline health report as PDF.
func BuildReportPDF(sensorID string, report pipeline.Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Pipeline Health Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Sensor: %s", sensorID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Checked: %s", report.CheckedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Overall: %s", report.OverallStatus))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Failing layer: %s", failingLayerName(report)))
	pdf.Ln(5)
	pdf.MultiCell(0, 6, report.UserMessage, "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Layer", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Last success", "1", 0, "C", false, 0, "")
	pdf.CellFormat(85, 6, "Message", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, check := range report.Checks {
		pdf.CellFormat(30, 6, string(check.Layer), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, string(check.Status), "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, formatTime(check.LastSuccess), "1", 0, "L", false, 0, "")
		pdf.CellFormat(85, 6, check.Message, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	if report.AdminDetails != "" {
		pdf.Ln(4)
		pdf.SetFont("Courier", "", 8)
		pdf.MultiCell(0, 4, report.AdminDetails, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a pipeline health report as XLSX.
func BuildReportXLSX(sensorID string, report pipeline.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	checksSheet := "checks"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(checksSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Pipeline Health Report")
	_ = f.SetCellValue(summarySheet, "A3", "Sensor")
	_ = f.SetCellValue(summarySheet, "B3", sensorID)
	_ = f.SetCellValue(summarySheet, "A4", "Checked")
	_ = f.SetCellValue(summarySheet, "B4", report.CheckedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Overall")
	_ = f.SetCellValue(summarySheet, "B5", string(report.OverallStatus))
	_ = f.SetCellValue(summarySheet, "A6", "Failing layer")
	_ = f.SetCellValue(summarySheet, "B6", failingLayerName(report))
	_ = f.SetCellValue(summarySheet, "A7", "Message")
	_ = f.SetCellValue(summarySheet, "B7", report.UserMessage)

	headers := []string{"Layer", "Status", "Last success", "Message", "Error", "Details"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(checksSheet, cell, header)
	}
	for i, check := range report.Checks {
		row := i + 2
		values := []string{string(check.Layer), string(check.Status), formatTime(check.LastSuccess), check.Message, check.Error, check.TechnicalDetails}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(checksSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func failingLayerName(report pipeline.Report) string {
	if report.FailingLayer == nil {
		return "none"
	}
	return string(*report.FailingLayer)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func exportFileName(sensorID, ext string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, sensorID)
	return fmt.Sprintf("pipeline-health-%s.%s", safe, ext)
}
