package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"

	"ncr_ingest/config"
	"ncr_ingest/ingest"
)

// BrowserHandler drives a real Chromium instance through playwright. A
// persistent profile directory keeps cookies between runs, which lowers the
// challenge rate considerably compared to a fresh context per page.
type BrowserHandler struct {
	cfg         *config.FetcherConfig
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	activePage  playwright.Page
	mu          sync.Mutex
	initialized bool
}

func NewBrowserHandler(cfg *config.FetcherConfig) *BrowserHandler {
	return &BrowserHandler{cfg: cfg}
}

func (h *BrowserHandler) Fetch(ctx context.Context, city *config.CityConfig, page int) ingest.FetchOutcome {
	if err := h.ensureBrowser(); err != nil {
		return ingest.Fatal(err.Error())
	}
	if err := jitterSleep(ctx, h.cfg.DelayMinMS, h.cfg.DelayMaxMS); err != nil {
		return ingest.Fatal(err.Error())
	}

	pageURL := fmt.Sprintf(city.URLTemplate, page)
	_, err := h.activePage.Goto(pageURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ingest.Fatal(ctx.Err().Error())
		}
		return ingest.Transient(fmt.Sprintf("navigation failed: %v", err))
	}

	h.simulateHumanBehavior()

	content, err := h.activePage.Content()
	if err != nil {
		return ingest.Transient(fmt.Sprintf("read page content: %v", err))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ingest.Transient(fmt.Sprintf("parse page: %v", err))
	}
	if pageBlocked(doc) {
		return ingest.Blocked(fmt.Sprintf("challenge page served for %s page %d", city.Name, page))
	}

	return ingest.Records(extractListings(doc, city.Name))
}

func (h *BrowserHandler) ensureBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	var err error
	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	userDataDir := h.cfg.UserDataDir
	if userDataDir == "" {
		cwd, _ := os.Getwd()
		userDataDir = filepath.Join(cwd, "browser_data")
	}
	h.context, err = h.pw.Chromium.LaunchPersistentContext(userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(false),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		h.pw.Stop()
		h.pw = nil
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	h.activePage, err = h.context.NewPage()
	if err != nil {
		h.context.Close()
		h.pw.Stop()
		h.pw = nil
		return fmt.Errorf("failed to create page: %w", err)
	}

	h.initialized = true
	log.Printf("Browser session started (profile: %s)", userDataDir)
	return nil
}

func (h *BrowserHandler) simulateHumanBehavior() {
	page := h.activePage

	page.Mouse().Move(float64(300+rand.Intn(400)), float64(200+rand.Intn(300)))
	page.WaitForTimeout(float64(200 + rand.Intn(300)))

	scrollAmount := 100 + rand.Intn(300)
	page.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, scrollAmount))
}

func (h *BrowserHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.activePage != nil {
		h.activePage.Close()
		h.activePage = nil
	}
	if h.context != nil {
		h.context.Close()
		h.context = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
	h.initialized = false
}
