// Package export builds the offer report and hands it to a Saver, the collaborator that
// writes documents to the user's disk.
package export

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"offer-tracker/internal/charts"
	"offer-tracker/internal/dateutil"
	"offer-tracker/internal/models"
)

const (
	offersSheet  = "Offers"
	summarySheet = "Summary"
)

var headers = []string{
	"Case Number", "Channel", "Offer Type", "Date", "Follow-up", "Follow-up Done",
	"Converted", "Conversion Date", "Status", "CSAT", "CSAT Comment", "Notes",
}

// Payload is a base64-encoded document and the filename suggested for it.
type Payload struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

// Result is the outcome reported by a Saver. Failures are values, not errors, so callers
// can show them to the user as is.
type Result struct {
	Success  bool   `json:"success"`
	FilePath string `json:"filePath,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Saver stores an encoded document.
type Saver interface {
	Save(ctx context.Context, p Payload) Result
}

// Filename returns the suggested report name for now.
func Filename(now time.Time) string {
	return fmt.Sprintf("offers-report-%s.xlsx", dateutil.FormatISODate(now))
}

// BuildReport renders offers as an XLSX workbook with an "Offers" and a "Summary" sheet.
func BuildReport(offers []models.Offer, now time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), offersSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(offersSheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to set header: %w", err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(offersSheet, "A1", lastHeader, bold); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for r, o := range offers {
		for c, val := range row(o, now) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(offersSheet, cell, val); err != nil {
				return nil, fmt.Errorf("failed to set cell value: %w", err)
			}
		}
	}
	if err := f.SetColWidth(offersSheet, "A", "L", 16); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to add summary sheet: %w", err)
	}
	s := charts.Summarize(offers, now, 0, nil)
	summary := [][2]any{
		{"Generated", dateutil.FormatDate(now)},
		{"Total offers", s.Total},
		{"Converted", s.Converted},
		{"Pending", s.Pending},
		{"Not converted", s.NotConverted},
		{"Conversion rate (%)", s.ConversionRate},
		{"Positive CSAT", s.Positive},
		{"Neutral CSAT", s.Neutral},
		{"Negative CSAT", s.Negative},
		{"Open follow-ups", s.PendingFollowups},
	}
	for i, kv := range summary {
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), kv[0]); err != nil {
			return nil, fmt.Errorf("failed to set summary: %w", err)
		}
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), kv[1]); err != nil {
			return nil, fmt.Errorf("failed to set summary: %w", err)
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 22); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func row(o models.Offer, now time.Time) []any {
	var followup, conversion string
	if o.FollowupDate != nil {
		followup = dateutil.FormatISODate(*o.FollowupDate)
	}
	if d, ok := o.Conversion.Date(); ok {
		conversion = dateutil.FormatISODate(d)
	}
	return []any{
		o.CaseNumber,
		o.Channel,
		o.OfferType,
		dateutil.FormatISODate(o.Date),
		followup,
		yesNo(o.FollowupDate != nil && o.FollowupCompleted),
		yesNo(o.Conversion.Converted()),
		conversion,
		string(charts.ConversionStatus(o, now)),
		string(o.CSAT),
		o.CSATComment,
		o.Notes,
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Encode builds the report and wraps it in a payload.
func Encode(offers []models.Offer, now time.Time) (Payload, error) {
	data, err := BuildReport(offers, now)
	if err != nil {
		return Payload{}, err
	}
	return Payload{
		Filename: Filename(now),
		Data:     base64.StdEncoding.EncodeToString(data),
	}, nil
}

// Export builds, encodes and saves the report. Every failure is reported in the result.
func Export(ctx context.Context, saver Saver, offers []models.Offer, now time.Time) Result {
	p, err := Encode(offers, now)
	if err != nil {
		return Result{Error: err.Error()}
	}
	return saver.Save(ctx, p)
}

// FileSaver writes payloads into a directory.
type FileSaver struct {
	dir string
}

// NewFileSaver creates a saver rooted at dir, created on first use.
func NewFileSaver(dir string) *FileSaver {
	return &FileSaver{dir: dir}
}

// Save decodes the payload and writes it under the saver's directory. The filename may not
// name a path.
func (s *FileSaver) Save(ctx context.Context, p Payload) Result {
	if err := ctx.Err(); err != nil {
		return Result{Error: err.Error()}
	}

	name, err := cleanFilename(p.Filename)
	if err != nil {
		return Result{Error: err.Error()}
	}
	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return Result{Error: fmt.Sprintf("invalid document payload: %v", err)}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Result{Error: fmt.Sprintf("failed to create export directory: %v", err)}
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Result{Error: fmt.Sprintf("failed to save file: %v", err)}
	}
	return Result{Success: true, FilePath: path}
}

func cleanFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("filename is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid filename %q", name)
	}
	return name, nil
}
