package auditx

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

// serialize renders the exported entries in the requested format. All
// formats render fully in memory; the caller publishes the bytes only after
// every stage succeeded.
func (x *Exporter) serialize(ctx context.Context, format Format, entries []*Entry, result *ExportResult) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch format {
	case FormatCSV:
		out, err = writeCSV(entries)
	case FormatJSON:
		out, err = writeJSON(entries, result)
	case FormatXML:
		out, err = writeXML(entries)
	case FormatXLSX:
		out, err = writeXLSX(ctx, entries)
	case FormatPDF:
		out, err = writePDF(entries, result)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s serialization: %w", ErrExportFailed, format, err)
	}
	return out, nil
}

// exportColumns is the tabular layout shared by the CSV and XLSX formats.
// Object-valued attributes are JSON-encoded into their cell.
var exportColumns = []string{
	"id", "timestamp", "level", "source", "action", "message",
	"resource_type", "resource_id", "user_id", "compliance_impact",
	"risk_score", "before_state", "after_state", "details",
	"encrypted_data", "prev_hash", "data_hash", "retention_days",
}

func entryRow(e *Entry) []string {
	return []string{
		e.ID,
		e.Timestamp.Format(time.RFC3339Nano),
		string(e.Level),
		e.Source,
		string(e.Action),
		e.Message,
		e.ResourceType,
		e.ResourceID,
		e.UserID,
		strconv.FormatBool(e.ComplianceImpact),
		strconv.Itoa(e.RiskScore),
		jsonCell(e.BeforeState),
		jsonCell(e.AfterState),
		jsonCell(e.Details),
		jsonCell(e.EncryptedData),
		e.PrevHash,
		e.DataHash,
		strconv.Itoa(e.RetentionDays),
	}
}

func jsonCell(v any) string {
	switch t := v.(type) {
	case Record:
		if t == nil {
			return ""
		}
	case map[string]string:
		if t == nil {
			return ""
		}
	case map[string]any:
		if t == nil {
			return ""
		}
	case nil:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// writeCSV renders comma-delimited rows; encoding/csv double-quotes cells
// containing embedded commas or quotes, matching the format contract.
func writeCSV(entries []*Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportColumns); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := w.Write(entryRow(e)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeJSON renders the UTF-8 envelope {export_metadata, audit_logs}.
func writeJSON(entries []*Entry, result *ExportResult) ([]byte, error) {
	if entries == nil {
		entries = []*Entry{}
	}
	envelope := struct {
		ExportMetadata map[string]any `json:"export_metadata"`
		AuditLogs      []*Entry       `json:"audit_logs"`
	}{
		ExportMetadata: map[string]any{
			"export_id":         result.ExportID,
			"generated_at":      result.GeneratedAt.Format(time.RFC3339Nano),
			"records_exported":  result.RecordsExported,
			"record_count_hash": result.RecordCountHash,
			"content_hash":      result.ContentHash,
			"requested_by":      result.RequestedBy,
		},
		AuditLogs: entries,
	}
	return json.MarshalIndent(envelope, "", "  ")
}

// xmlEscaper covers the five standard XML entities.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// writeXML renders a flat element-per-entry document.
func writeXML(entries []*Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString("<audit_export>\n")

	for _, e := range entries {
		buf.WriteString("  <entry>\n")
		row := entryRow(e)
		for i, col := range exportColumns {
			if row[i] == "" {
				continue
			}
			fmt.Fprintf(&buf, "    <%s>%s</%s>\n", col, xmlEscaper.Replace(row[i]), col)
		}
		buf.WriteString("  </entry>\n")
	}

	buf.WriteString("</audit_export>\n")
	return buf.Bytes(), nil
}

// writeXLSX renders one tabular sheet.
func writeXLSX(ctx context.Context, entries []*Entry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Audit Log"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for col, name := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return nil, err
		}
	}

	for rowIdx, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for col, value := range entryRow(e) {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writePDF renders a one-page summary. This is deliberately not a full
// report renderer; the PDF format exists so compliance reviewers get a
// human-readable cover sheet with the integrity evidence.
func writePDF(entries []*Entry, result *ExportResult) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Audit Export Summary")
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 11)
	lines := []string{
		fmt.Sprintf("Export ID: %s", result.ExportID),
		fmt.Sprintf("Generated: %s", result.GeneratedAt.Format(time.RFC3339)),
		fmt.Sprintf("Requested by: %s", result.RequestedBy),
		fmt.Sprintf("Records exported: %d", result.RecordsExported),
		fmt.Sprintf("Record count hash: %s", result.RecordCountHash),
		fmt.Sprintf("Content hash: %s", result.ContentHash),
	}
	if len(entries) > 0 {
		lines = append(lines,
			fmt.Sprintf("First entry: %s", entries[0].Timestamp.Format(time.RFC3339)),
			fmt.Sprintf("Last entry: %s", entries[len(entries)-1].Timestamp.Format(time.RFC3339)),
		)
	}
	for _, line := range lines {
		pdf.Cell(0, 8, line)
		pdf.Ln(8)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
