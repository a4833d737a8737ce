package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/eraycetinay/mailblast/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Extraction failures are input errors; they all unwrap to domain.ErrValidation.
var (
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported file format", domain.ErrValidation)
	ErrEmptySheet        = fmt.Errorf("%w: sheet contains no data rows", domain.ErrValidation)
	ErrNoValidRecipients = fmt.Errorf("%w: no valid email addresses found", domain.ErrValidation)
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeCSV  = "text/csv"
)

// Options control how cells are scanned for recipient addresses.
type Options struct {
	// Column restricts scanning to the named header column. When empty,
	// every cell of every data row is tested against the email pattern.
	// The whole-row scan tolerates recipients placed in any column at the
	// cost of picking up non-recipient cells that happen to look like
	// addresses; that tradeoff is intentional.
	Column string
}

// Extract parses an uploaded tabular file and returns the validated,
// deduplicated recipient addresses in order of first occurrence. Only the
// first sheet is read and the header row is always skipped.
func Extract(data []byte, mimeType string) ([]string, error) {
	return ExtractWithOptions(data, mimeType, Options{})
}

func ExtractWithOptions(data []byte, mimeType string, opts Options) ([]string, error) {
	rows, err := readRows(data, mimeType)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrEmptySheet
	}

	columnIndex := -1
	if strings.TrimSpace(opts.Column) != "" {
		columnIndex, err = findColumn(rows[0], opts.Column)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]struct{})
	recipients := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		for i, cell := range row {
			if columnIndex >= 0 && i != columnIndex {
				continue
			}
			value := strings.TrimSpace(cell)
			if value == "" || !domain.IsValidEmail(value) {
				continue
			}
			if _, ok := seen[value]; ok {
				continue
			}
			seen[value] = struct{}{}
			recipients = append(recipients, value)
		}
	}

	if len(recipients) == 0 {
		return nil, ErrNoValidRecipients
	}
	return recipients, nil
}

func readRows(data []byte, mimeType string) ([][]string, error) {
	normalized := normalizeMIME(mimeType)

	switch normalized {
	case mimeXLSX:
		return readXLSX(data)
	case mimeCSV, "application/csv":
		return readCSV(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, mimeType)
	}
}

func normalizeMIME(mimeType string) string {
	trimmed := strings.TrimSpace(mimeType)
	if trimmed == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(trimmed)
	if err != nil {
		return strings.ToLower(trimmed)
	}
	return mediaType
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func findColumn(header []string, name string) (int, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, cell := range header {
		if strings.ToLower(strings.TrimSpace(cell)) == want {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: column %q not found in header row", domain.ErrValidation, name)
}
