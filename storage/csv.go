package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"ktm_scrooper/models"
)

// csvHeader is the column layout of the capture ledger. Existing files are
// never rewritten, so the order is append-only.
var csvHeader = []string{
	"site", "tab_name", "subtab_name", "card_index", "list_title",
	"modal_title", "modal_price_text", "modal_price",
	"speed_toplist_modal", "speed_dataguide_modal",
	"modal_html_path", "modal_png_path",
	"modal_text_all", "modal_sections_json", "modal_dl_json",
	"modal_tables_json", "modal_links_json", "modal_bullets_json",
}

// CSVLedger appends one row per captured modal to a CSV file, writing the
// header only when the file is created.
type CSVLedger struct {
	mu   sync.Mutex
	path string
}

func NewCSVLedger(path string) (*CSVLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create csv dir: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("create csv: %w", err)
		}
		w := csv.NewWriter(f)
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		w.Flush()
		if err := f.Close(); err != nil {
			return nil, err
		}
	}

	return &CSVLedger{path: path}, nil
}

func (l *CSVLedger) Path() string {
	return l.path
}

func (l *CSVLedger) Append(plan *models.RawPlan) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	price := ""
	if plan.Price > 0 {
		price = strconv.Itoa(plan.Price)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		plan.Site,
		plan.TabName,
		plan.SubtabName,
		strconv.Itoa(plan.CardIndex),
		plan.ListTitle,
		plan.ModalTitle,
		plan.PriceText,
		price,
		plan.SpeedTopList,
		plan.SpeedDataGuide,
		plan.HTMLPath,
		plan.ScreenshotPath,
		plan.TextAll,
		string(plan.SectionsJSON),
		string(plan.DLJSON),
		string(plan.TablesJSON),
		string(plan.LinksJSON),
		string(plan.BulletsJSON),
	}); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}
