package scraper

import (
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
)

const anyModalSelector = "dialog, [role='dialog'], .c-modal.is-active"

// closeAllModals dismisses every open dialog/.c-modal, up to three rounds:
// close buttons first, then Escape, then a short wait for them to hide.
func (h *BrowserHandler) closeAllModals() {
	page := h.page
	closeTimeout := float64(h.cfg.Timeouts.ModalCloseMS)

	for round := 0; round < 3; round++ {
		open := page.Locator(anyModalSelector)
		count, _ := open.Count()
		visible := 0
		for i := 0; i < count && i < 8; i++ {
			if v, _ := open.Nth(i).IsVisible(); v {
				visible++
			}
		}
		if visible == 0 {
			return
		}

		for _, sel := range []string{
			"dialog [data-dialog-close]",
			"dialog .c-modal__close",
			"dialog button:has-text('닫기')",
			"dialog button:has-text('팝업닫기')",
			".c-modal.is-active [data-dialog-close]",
			".c-modal.is-active .c-modal__close",
			".c-modal.is-active button:has-text('닫기')",
			".c-modal.is-active button:has-text('팝업닫기')",
		} {
			btn := page.Locator(sel)
			if n, _ := btn.Count(); n > 0 {
				btn.First().Click()
				page.WaitForTimeout(120)
			}
		}

		page.Keyboard().Press("Escape")

		page.Locator(anyModalSelector).First().WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateHidden,
			Timeout: playwright.Float(closeTimeout),
		})
	}
}

// disableBlockingUI turns off pointer events on the floating compare tray
// and friends so they can't swallow card clicks.
func (h *BrowserHandler) disableBlockingUI() {
	var quoted []string
	for _, sel := range h.cfg.Selectors.BlockingUI {
		quoted = append(quoted, fmt.Sprintf("%q", sel))
	}
	js := fmt.Sprintf(`
	for (const sel of [%s]) {
	  try {
	    const el = document.querySelector(sel);
	    if (el) el.style.pointerEvents = 'none';
	  } catch (e) {}
	}
	`, strings.Join(quoted, ", "))
	h.page.Evaluate(js)
}

// clickAndWaitModal clicks a card's detail trigger and waits for the
// resulting modal to surface, trying progressively looser selectors.
// Returns a locator for the visible modal.
func (h *BrowserHandler) clickAndWaitModal(trigger playwright.Locator, target string) (playwright.Locator, error) {
	page := h.page
	openTimeout := float64(h.cfg.Timeouts.ModalOpenMS)

	h.disableBlockingUI()
	trigger.ScrollIntoViewIfNeeded()
	// nudge up so floating UI doesn't overlap the trigger
	page.Mouse().Wheel(0, -200)
	page.WaitForTimeout(100)
	if err := trigger.Click(playwright.LocatorClickOptions{Force: playwright.Bool(true)}); err != nil {
		return nil, fmt.Errorf("click trigger: %w", err)
	}

	// 1st: the explicit target in its active state
	active := page.Locator(target + ".is-active")
	if err := active.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(openTimeout * 0.5),
	}); err == nil {
		return page.Locator(target), nil
	}

	// 2nd: content nodes inside the target
	inner := page.Locator(fmt.Sprintf("%s .c-modal__dialog, %s .c-modal__content, %s [role='document']", target, target, target)).First()
	if err := inner.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(openTimeout * 0.6),
	}); err == nil {
		return page.Locator(target), nil
	}

	// 3rd: whatever dialog actually surfaced
	for _, sel := range []string{
		"dialog[open]",
		"[role='dialog']:not([aria-hidden='true'])",
		".c-modal.is-active",
		"dialog",
		"[role='dialog']",
	} {
		loc := page.Locator(sel)
		count, _ := loc.Count()
		for i := 0; i < count && i < 6; i++ {
			el := loc.Nth(i)
			if err := el.WaitFor(playwright.LocatorWaitForOptions{
				State:   playwright.WaitForSelectorStateVisible,
				Timeout: playwright.Float(openTimeout * 0.6),
			}); err == nil {
				return el, nil
			}
		}
	}

	// let the caller try InnerHTML on the target anyway
	return page.Locator(target), nil
}

// expandModalContent opens collapsed accordions inside the modal and scrolls
// its body to the bottom so lazy content renders before capture.
func (h *BrowserHandler) expandModalContent(modal playwright.Locator) {
	page := h.page

	for pass := 0; pass < 2; pass++ {
		acc := modal.Locator(h.cfg.Selectors.AccordionButton)
		count, _ := acc.Count()
		for i := 0; i < count; i++ {
			btn := acc.Nth(i)
			aria, _ := btn.GetAttribute("aria-expanded")
			if strings.ToLower(aria) != "true" {
				btn.Click()
				page.WaitForTimeout(100)
			}
		}
	}

	content := modal.Locator(".c-modal__content, .c-modal__body, .c-modal__dialog").First()
	if n, _ := content.Count(); n > 0 {
		if _, err := content.Evaluate("el => { el.scrollTop = 0; el.scrollTo(0, el.scrollHeight); }", nil); err != nil {
			for i := 0; i < 6; i++ {
				page.Mouse().Wheel(0, 600)
				page.WaitForTimeout(60)
			}
		}
	}
}

// expandAccordions opens every collapsed accordion on the page. Two passes,
// since the first click can add DOM with more accordions.
func (h *BrowserHandler) expandAccordions() {
	page := h.page
	for pass := 0; pass < 2; pass++ {
		acc := page.Locator(h.cfg.Selectors.AccordionButton)
		count, _ := acc.Count()
		for i := 0; i < count; i++ {
			btn := acc.Nth(i)
			aria, _ := btn.GetAttribute("aria-expanded")
			if strings.ToLower(aria) != "true" {
				btn.Click()
				page.WaitForTimeout(120)
			}
		}
	}
}

// clickShowMore keeps clicking show-more / load-more controls until none
// respond, capped at 24 rounds.
func (h *BrowserHandler) clickShowMore() {
	page := h.page
	for round := 0; round < 24; round++ {
		clicked := false
		for _, sel := range h.cfg.Selectors.ShowMore {
			btn := page.Locator(sel).First()
			if n, _ := btn.Count(); n == 0 {
				continue
			}
			if enabled, _ := btn.IsEnabled(); !enabled {
				continue
			}
			btn.ScrollIntoViewIfNeeded()
			if err := btn.Click(); err == nil {
				page.WaitForTimeout(450)
				clicked = true
			}
		}
		if !clicked {
			return
		}
	}
}

// scrollLazyCards wheels down the page to force late-loading cards to render.
func (h *BrowserHandler) scrollLazyCards() {
	page := h.page
	for i := 0; i < 12; i++ {
		page.Mouse().Wheel(0, 2000)
		page.WaitForTimeout(120)
	}
}
