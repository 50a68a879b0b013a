package ingestion

import (
	"strings"

	"github.com/samber/lo"

	"kpianalyzer/pkg/contracts/domain"
)

// Normalize unions the sheets of every source into one raw table. Columns keep
// first-seen order; each record is tagged with its file, sheet and BBH/DAY type.
func Normalize(sources []Source) (*domain.RawTable, error) {
	table := &domain.RawTable{}
	seen := make(map[string]struct{})

	for _, src := range sources {
		for _, sheet := range src.Sheets {
			prov := domain.Provenance{
				SourceFile: src.Name,
				Sheet:      sheet.Name,
				Type:       SheetTypeFor(src.Name, sheet.Name),
			}
			for _, col := range sheet.Header {
				if _, ok := seen[col]; !ok {
					seen[col] = struct{}{}
					table.Columns = append(table.Columns, col)
				}
			}

			info := domain.SourceInfo{
				Provenance: prov,
				Columns:    lo.Uniq(sheet.Header),
			}
			for _, row := range sheet.Rows {
				cells := make(map[string]string, len(sheet.Header))
				for i, col := range sheet.Header {
					if i < len(row) {
						cells[col] = strings.TrimSpace(row[i])
					} else {
						cells[col] = ""
					}
				}
				table.Records = append(table.Records, domain.RawRecord{
					Cells:      cells,
					Provenance: prov,
				})
				info.RowCount++
			}
			table.Sources = append(table.Sources, info)
		}
	}

	if len(table.Records) == 0 {
		return nil, ErrEmptyInput
	}
	return table, nil
}

// SheetInfo maps each workbook to its sheet names.
func SheetInfo(sources []Source) map[string][]string {
	info := make(map[string][]string, len(sources))
	for _, src := range sources {
		info[src.Name] = src.SheetNames()
	}
	return info
}
