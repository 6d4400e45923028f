package scraper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ModalFields are the headline values pulled from a plan detail modal.
type ModalFields struct {
	Title          string
	PriceText      string
	Price          int
	SpeedTopList   string
	SpeedDataGuide string
}

// ModalExtras is the broad capture of a modal: full text plus structured
// views of its sections, definition lists, tables, links, and bullets,
// each serialized to compact JSON.
type ModalExtras struct {
	TextAll      string
	SectionsJSON json.RawMessage
	DLJSON       json.RawMessage
	TablesJSON   json.RawMessage
	LinksJSON    json.RawMessage
	BulletsJSON  json.RawMessage
}

type modalSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type dlPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type modalTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

type modalLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

const headingSelector = "h1, h2, h3, h4, h5, h6"

// ParseModalFields extracts the title, price, and Mbps throttle lines from
// modal HTML.
func ParseModalFields(html string) (*ModalFields, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse modal html: %w", err)
	}

	f := &ModalFields{}
	if t := doc.Find("#modalProductTitle, .c-modal__title").First(); t.Length() > 0 {
		f.Title = norm(t.Text())
	}
	if p := doc.Find(".product-detail__price, .product-detail__price-wrap, .u-co-red, .u-co-black").First(); p.Length() > 0 {
		f.PriceText = norm(p.Text())
	}
	f.Price = money(f.PriceText)
	f.SpeedTopList = extractSummarySpeedLines(doc)
	f.SpeedDataGuide = extractDataGuideSpeedLines(doc)
	return f, nil
}

// extractSummarySpeedLines collects Mbps lines from the modal's summary
// lists, falling back to any list item in the modal body.
func extractSummarySpeedLines(doc *goquery.Document) string {
	var hits []string
	doc.Find("ul.product-summary li, ul.notification.free li, " +
		".product-detail .product-summary li, .detail-info ul.notification.free li").
		Each(func(_ int, li *goquery.Selection) {
			if txt := norm(li.Text()); txt != "" && mbpsRegex.MatchString(txt) {
				hits = append(hits, txt)
			}
		})
	if len(hits) == 0 {
		doc.Find(".c-modal__body li, .c-modal__content li").Each(func(_ int, li *goquery.Selection) {
			if txt := norm(li.Text()); txt != "" && mbpsRegex.MatchString(txt) {
				hits = append(hits, txt)
			}
		})
	}
	return uniqJoin(hits)
}

// extractDataGuideSpeedLines collects Mbps lines from the "데이터 이용 안내"
// section, scoped to the first detail container after its heading.
func extractDataGuideSpeedLines(doc *goquery.Document) string {
	var heading *goquery.Selection
	doc.Find("h1, h2, h3, h4").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if strings.Contains(norm(h.Text()), "데이터 이용 안내") {
			heading = h
			return false
		}
		return true
	})
	if heading == nil {
		return ""
	}

	container := heading.NextAllFiltered(".plan-detail-conts, .acc-conts, .product-detail, .c-product--box, .plan-sect").First()
	if container.Length() == 0 {
		container = heading.Parent().Find(".plan-detail-conts, .acc-conts, .product-detail, .c-product--box, .plan-sect").First()
	}
	if container.Length() == 0 {
		container = heading.Parent()
	}

	var hits []string
	container.Find("li").Each(func(_ int, li *goquery.Selection) {
		if txt := norm(li.Text()); txt != "" && mbpsRegex.MatchString(txt) {
			hits = append(hits, txt)
		}
	})
	return uniqJoin(hits)
}

// ParseModalExtras captures the modal wholesale for archival.
func ParseModalExtras(html string) (*ModalExtras, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse modal html: %w", err)
	}

	root := doc.Find(".c-modal__content, .c-modal__body, .c-modal__dialog").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	ex := &ModalExtras{TextAll: norm(root.Text())}

	var sections []modalSection
	root.Find(headingSelector).Each(func(_ int, h *goquery.Selection) {
		title := norm(h.Text())
		var parts []string
		h.NextUntil(headingSelector).Each(func(_ int, sib *goquery.Selection) {
			if goquery.NodeName(sib) == "script" || goquery.NodeName(sib) == "style" {
				return
			}
			if txt := norm(sib.Text()); txt != "" {
				parts = append(parts, txt)
			}
		})
		body := strings.Join(parts, " ")
		if title != "" || body != "" {
			sections = append(sections, modalSection{Title: title, Body: body})
		}
	})
	ex.SectionsJSON = mustCompactJSON(sections)

	var dls [][]dlPair
	root.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		dts := dl.Find("dt")
		dds := dl.Find("dd")
		n := dts.Length()
		if dds.Length() < n {
			n = dds.Length()
		}
		var pairs []dlPair
		for i := 0; i < n; i++ {
			k := norm(dts.Eq(i).Text())
			v := norm(dds.Eq(i).Text())
			if k != "" || v != "" {
				pairs = append(pairs, dlPair{Key: k, Value: v})
			}
		}
		if len(pairs) > 0 {
			dls = append(dls, pairs)
		}
	})
	ex.DLJSON = mustCompactJSON(dls)

	var tables []modalTable
	root.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		var headers []string
		tbl.Find("thead").First().Find("th, td").Each(func(_ int, c *goquery.Selection) {
			headers = append(headers, norm(c.Text()))
		})
		if len(headers) == 0 {
			tbl.Find("tr").First().Find("th, td").Each(func(_ int, c *goquery.Selection) {
				headers = append(headers, norm(c.Text()))
			})
		}
		var rows [][]string
		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var row []string
			any := false
			tr.Find("th, td").Each(func(_ int, c *goquery.Selection) {
				txt := norm(c.Text())
				if txt != "" {
					any = true
				}
				row = append(row, txt)
			})
			if any {
				rows = append(rows, row)
			}
		})
		if len(rows) > 0 {
			tables = append(tables, modalTable{Headers: headers, Rows: rows})
		}
	})
	ex.TablesJSON = mustCompactJSON(tables)

	var links []modalLink
	root.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		txt := norm(a.Text())
		if href != "" || txt != "" {
			links = append(links, modalLink{Text: txt, Href: href})
		}
	})
	ex.LinksJSON = mustCompactJSON(links)

	var bullets [][]string
	root.Find("ul, ol").Each(func(_ int, ul *goquery.Selection) {
		var items []string
		any := false
		ul.Find("li").Each(func(_ int, li *goquery.Selection) {
			txt := norm(li.Text())
			if txt != "" {
				any = true
			}
			items = append(items, txt)
		})
		if any {
			bullets = append(bullets, items)
		}
	})
	ex.BulletsJSON = mustCompactJSON(bullets)

	return ex, nil
}

func mustCompactJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
