// Package exports reads and writes lead CSV files and publishes exports
// to object storage.
package exports

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"crescoflow/internal/leads/domain"
)

const (
	// ContentType of every CSV produced here.
	ContentType = "text/csv; charset=utf-8"

	minImportColumns = 4
	unknownSector    = "Unknown"
	sourceCSV        = "csv"
)

// Headers is the export header row.
var Headers = []string{"Bedrijfsnaam", "Sector", "Stad", "Website", "Zaakvoerder", "CEO Email", "CEO Telefoon", "Website Score", "Outbound Kanaal"}

// WriteCSV writes the header and one row per lead, in the given order.
func WriteCSV(w io.Writer, leads []domain.Lead) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Headers); err != nil {
		return err
	}
	for _, l := range leads {
		if err := writer.Write(row(l)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func row(l domain.Lead) []string {
	return []string{
		l.CompanyName,
		l.Sector,
		l.City,
		l.Website,
		l.DecisionMakerName(),
		l.CEO.Email,
		l.CEO.Phone,
		strconv.Itoa(l.WebsiteScore),
		string(l.OutboundChannel),
	}
}

// ImportResult holds the partial leads of an import and the rows skipped.
type ImportResult struct {
	Leads   []domain.Lead `json:"-"`
	Skipped int           `json:"skipped"`
}

// ParseImport reads companyName,sector,city,website[,ceoName] rows. The
// first row is a header. Rows with fewer than four columns or without a
// company name are skipped.
func ParseImport(r io.Reader) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var res ImportResult
	header := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read csv: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(record) < minImportColumns || strings.TrimSpace(record[0]) == "" {
			res.Skipped++
			continue
		}

		lead := domain.Lead{
			CompanyName: strings.TrimSpace(record[0]),
			Sector:      strings.TrimSpace(record[1]),
			City:        strings.TrimSpace(record[2]),
			Website:     strings.TrimSpace(record[3]),
			PipelineTag: domain.StageCold,
			Source:      sourceCSV,
		}
		if lead.Sector == "" {
			lead.Sector = unknownSector
		}
		if len(record) > minImportColumns {
			lead.CEOName = strings.TrimSpace(record[4])
		}
		res.Leads = append(res.Leads, lead)
	}
	return res, nil
}
