package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"kyc-backend/internal/audit"
)

const exportSheet = "Extracted Data"

// Export writes every document's extracted fields to an XLSX workbook with
// one column per field name in columns order. Missing values are left blank.
func (s *Service) Export(ctx context.Context, actorID string, columns []string) ([]byte, error) {
	start := time.Now()
	docs, err := s.Repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, err
	}

	headers := append([]string{"Document ID", "Owner ID", "Document Type"}, columns...)
	headers = append(headers, "Extraction Status", "Uploaded At")
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	for r, d := range docs {
		row := r + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}
		write(1, d.ID)
		write(2, d.OwnerID)
		write(3, d.DocumentType)
		for i, name := range columns {
			val := ""
			if v := d.Fields[name]; v != nil {
				val = *v
			}
			write(4+i, val)
		}
		write(4+len(columns), string(d.ExtractionStatus))
		write(5+len(columns), d.UploadedAt.UTC().Format(time.RFC3339))
	}

	_ = f.SetColWidth(exportSheet, "A", "B", 38)
	_ = f.SetColWidth(exportSheet, "C", "C", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.Audit.Record(ctx, audit.Event{
		ActorID:    actorID,
		Action:     audit.ActionExtractedDataExport,
		TargetType: "export",
		Detail:     fmt.Sprintf("%d rows", len(docs)),
	})
	s.Logger.Info("export.xlsx.ok", "rows", len(docs), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}
