package storage

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ktm_scrooper/models"
)

func samplePlan() *models.RawPlan {
	return &models.RawPlan{
		Site:           "ktmmobile",
		TabName:        "유심/eSIM 요금제",
		SubtabName:     "LTE",
		CardIndex:      3,
		ListTitle:      "모두다 맘껏 11GB+",
		ModalTitle:     "모두다 맘껏 11GB+",
		PriceText:      "월 33,000원",
		Price:          33000,
		SpeedTopList:   "기본 제공량 소진 시 최대 3Mbps 속도로 계속 이용",
		SpeedDataGuide: "일 2GB 소진 후 3Mbps 속도 제어",
		HTMLPath:       "out/html/모두다_맘껏_11GB+.html",
		ScreenshotPath: "out/modals/모두다_맘껏_11GB+.png",
		TextAll:        "모두다 맘껏 11GB+ 월 33,000원",
		SectionsJSON:   json.RawMessage(`[{"title":"데이터 이용 안내","body":"일 2GB"}]`),
		DLJSON:         json.RawMessage(`[]`),
		TablesJSON:     json.RawMessage(`[]`),
		LinksJSON:      json.RawMessage(`[]`),
		BulletsJSON:    json.RawMessage(`[]`),
		ScrapedAt:      time.Now(),
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

func TestCSVLedger_WritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "ktmmobile_modal_data.csv")

	ledger, err := NewCSVLedger(path)
	if err != nil {
		t.Fatalf("create ledger: %v", err)
	}

	if err := ledger.Append(samplePlan()); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}
	if len(rows[0]) != len(csvHeader) {
		t.Fatalf("expected %d header columns, got %d", len(csvHeader), len(rows[0]))
	}
	if rows[0][0] != "site" || rows[0][17] != "modal_bullets_json" {
		t.Fatalf("unexpected header %v", rows[0])
	}

	row := rows[1]
	if row[1] != "유심/eSIM 요금제" || row[2] != "LTE" {
		t.Fatalf("unexpected tab columns %v", row[:4])
	}
	if row[3] != "3" {
		t.Fatalf("expected card index 3, got %q", row[3])
	}
	if row[7] != "33000" {
		t.Fatalf("expected price 33000, got %q", row[7])
	}
}

func TestCSVLedger_HeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")

	first, err := NewCSVLedger(path)
	if err != nil {
		t.Fatalf("create ledger: %v", err)
	}
	if err := first.Append(samplePlan()); err != nil {
		t.Fatalf("append: %v", err)
	}

	// a second open of the same file must not rewrite or duplicate the header
	second, err := NewCSVLedger(path)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	if err := second.Append(samplePlan()); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	for _, row := range rows[1:] {
		if row[0] != "ktmmobile" {
			t.Fatalf("unexpected data row %v", row)
		}
	}
}

func TestCSVLedger_ZeroPriceLeftBlank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")

	ledger, err := NewCSVLedger(path)
	if err != nil {
		t.Fatalf("create ledger: %v", err)
	}

	plan := samplePlan()
	plan.Price = 0
	plan.PriceText = ""
	if err := ledger.Append(plan); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows := readRows(t, path)
	if rows[1][7] != "" {
		t.Fatalf("expected blank price column, got %q", rows[1][7])
	}
}
