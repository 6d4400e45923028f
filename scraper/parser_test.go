package scraper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return string(data)
}

func TestParseModalFields_Basic(t *testing.T) {
	html := loadFixture(t, "ktm_modal_basic.html")

	fields, err := ParseModalFields(html)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if fields.Title != "모두다 맘껏 11GB+" {
		t.Fatalf("unexpected title %q", fields.Title)
	}
	if fields.PriceText != "월 33,000원" {
		t.Fatalf("unexpected price text %q", fields.PriceText)
	}
	if fields.Price != 33000 {
		t.Fatalf("expected price 33000, got %d", fields.Price)
	}
	if fields.SpeedTopList != "기본 제공량 소진 시 최대 3Mbps 속도로 계속 이용" {
		t.Fatalf("unexpected summary speed line %q", fields.SpeedTopList)
	}
	if fields.SpeedDataGuide != "일 2GB 소진 후 3Mbps 속도 제어" {
		t.Fatalf("unexpected data guide speed line %q", fields.SpeedDataGuide)
	}
}

func TestParseModalFields_Minimal(t *testing.T) {
	html := loadFixture(t, "ktm_modal_minimal.html")

	fields, err := ParseModalFields(html)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if fields.Title != "제휴 안심 1.4GB" {
		t.Fatalf("unexpected title %q", fields.Title)
	}
	if fields.PriceText != "" || fields.Price != 0 {
		t.Fatalf("expected no price, got %q / %d", fields.PriceText, fields.Price)
	}
	// no summary list, so the body-wide fallback should pick up the throttle line
	if fields.SpeedTopList != "소진 시 400Kbps, 프로모션 적용 시 1Mbps 로 이용 가능" {
		t.Fatalf("unexpected fallback speed line %q", fields.SpeedTopList)
	}
	if fields.SpeedDataGuide != "" {
		t.Fatalf("expected no data guide section, got %q", fields.SpeedDataGuide)
	}
}

func TestParseModalExtras_Basic(t *testing.T) {
	html := loadFixture(t, "ktm_modal_basic.html")

	extras, err := ParseModalExtras(html)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if extras.TextAll == "" {
		t.Fatal("expected non-empty text capture")
	}

	var sections []modalSection
	if err := json.Unmarshal(extras.SectionsJSON, &sections); err != nil {
		t.Fatalf("bad sections json: %v", err)
	}
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	if sections[1].Title != "데이터 이용 안내" {
		t.Fatalf("unexpected section title %q", sections[1].Title)
	}
	if sections[1].Body == "" {
		t.Fatal("expected data guide section body")
	}

	var dls [][]dlPair
	if err := json.Unmarshal(extras.DLJSON, &dls); err != nil {
		t.Fatalf("bad dl json: %v", err)
	}
	if len(dls) != 1 || len(dls[0]) != 2 {
		t.Fatalf("expected one dl with 2 pairs, got %v", dls)
	}
	if dls[0][0].Key != "부가세" || dls[0][0].Value != "포함" {
		t.Fatalf("unexpected first dl pair %+v", dls[0][0])
	}

	var tables []modalTable
	if err := json.Unmarshal(extras.TablesJSON, &tables); err != nil {
		t.Fatalf("bad tables json: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	if len(tables[0].Headers) != 2 || tables[0].Headers[0] != "구분" {
		t.Fatalf("unexpected table headers %v", tables[0].Headers)
	}
	if len(tables[0].Rows) != 3 {
		t.Fatalf("expected 3 rows including header row, got %d", len(tables[0].Rows))
	}

	var links []modalLink
	if err := json.Unmarshal(extras.LinksJSON, &links); err != nil {
		t.Fatalf("bad links json: %v", err)
	}
	if len(links) != 1 || links[0].Href != "/rate/rateView.do?prodNo=1234" {
		t.Fatalf("unexpected links %v", links)
	}

	var bullets [][]string
	if err := json.Unmarshal(extras.BulletsJSON, &bullets); err != nil {
		t.Fatalf("bad bullets json: %v", err)
	}
	if len(bullets) != 2 {
		t.Fatalf("expected 2 bullet groups, got %d", len(bullets))
	}
	if len(bullets[0]) != 3 {
		t.Fatalf("expected 3 items in first group, got %d", len(bullets[0]))
	}
}
