package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"offer-tracker/internal/models"
)

var now = time.Date(2025, 5, 14, 15, 30, 0, 0, time.UTC)

func sampleOffers() []models.Offer {
	followup := now.AddDate(0, 0, 3)
	return []models.Offer{
		{
			ID: "1", CaseNumber: "CASE-1", Channel: "Phone", OfferType: "Upgrade",
			Date: now.AddDate(0, 0, -2), FollowupDate: &followup, CSAT: models.CSATPositive,
			Notes: "call back",
		},
		{
			ID: "2", CaseNumber: "CASE-2", Channel: "Chat", OfferType: "Retention",
			Date: now.AddDate(0, 0, -40), Conversion: models.ConvertedOn(now.AddDate(0, 0, -35)),
		},
	}
}

func TestBuildReport(t *testing.T) {
	data, err := BuildReport(sampleOffers(), now)
	if err != nil {
		t.Fatalf("BuildReport failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Report is not a valid workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(offersSheet)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Case Number" || rows[1][0] != "CASE-1" || rows[2][0] != "CASE-2" {
		t.Errorf("Unexpected first column: %v %v %v", rows[0][0], rows[1][0], rows[2][0])
	}
	if rows[1][3] != "2025-05-12" || rows[1][4] != "2025-05-17" {
		t.Errorf("Unexpected dates in row 1: %v", rows[1])
	}
	if rows[2][6] != "Yes" || rows[2][7] != "2025-04-09" || rows[2][8] != "converted" {
		t.Errorf("Unexpected conversion columns in row 2: %v", rows[2])
	}
	if rows[1][8] != "pending" {
		t.Errorf("Expected pending status, got %q", rows[1][8])
	}

	total, err := f.GetCellValue(summarySheet, "B2")
	if err != nil || total != "2" {
		t.Errorf("Expected summary total 2, got %q (%v)", total, err)
	}
}

func TestEncodeAndFileSaver(t *testing.T) {
	p, err := Encode(sampleOffers(), now)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if p.Filename != "offers-report-2025-05-14.xlsx" {
		t.Errorf("Unexpected filename %q", p.Filename)
	}

	dir := filepath.Join(t.TempDir(), "exports")
	res := NewFileSaver(dir).Save(context.Background(), p)
	if !res.Success {
		t.Fatalf("Save failed: %s", res.Error)
	}
	if res.FilePath != filepath.Join(dir, p.Filename) {
		t.Errorf("Unexpected path %q", res.FilePath)
	}

	written, err := os.ReadFile(res.FilePath)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	decoded, _ := base64.StdEncoding.DecodeString(p.Data)
	if !bytes.Equal(written, decoded) {
		t.Error("Saved file does not match the payload")
	}
}

func TestFileSaver_Failures(t *testing.T) {
	saver := NewFileSaver(t.TempDir())
	ctx := context.Background()

	tests := []struct {
		name    string
		payload Payload
	}{
		{"empty filename", Payload{Data: "AA=="}},
		{"path traversal", Payload{Filename: "../escape.xlsx", Data: "AA=="}},
		{"bad base64", Payload{Filename: "report.xlsx", Data: "not base64!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := saver.Save(ctx, tt.payload)
			if res.Success || res.Error == "" {
				t.Errorf("Expected failure result, got %+v", res)
			}
		})
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if res := saver.Save(cancelled, Payload{Filename: "x.xlsx", Data: "AA=="}); res.Success {
		t.Error("Expected a cancelled context to fail the save")
	}
}

type stubSaver struct{ got Payload }

func (s *stubSaver) Save(_ context.Context, p Payload) Result {
	s.got = p
	return Result{Success: false, Error: "disk full"}
}

func TestExport_PassesSaverResultThrough(t *testing.T) {
	saver := &stubSaver{}
	res := Export(context.Background(), saver, nil, now)
	if res.Success || res.Error != "disk full" {
		t.Errorf("Expected the saver failure to be returned, got %+v", res)
	}
	if saver.got.Filename == "" || saver.got.Data == "" {
		t.Error("Expected an encoded payload to reach the saver")
	}
}
