package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/nexus/internal/access"
	"github.com/TobiSchelling/nexus/internal/config"
	"github.com/TobiSchelling/nexus/internal/database"
	"github.com/TobiSchelling/nexus/internal/meta"
)

const testKey = "s3cret"

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestServer(t *testing.T, db *database.DB, checker access.Checker) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.API.KeyEnv = ""
	cfg.API.Key = testKey
	if checker == nil {
		checker = access.AllowAll{}
	}
	srv, err := New(db, cfg, checker, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

// addItem inserts a published post and sets the given meta.
func addItem(t *testing.T, db *database.DB, title string, kv ...string) int64 {
	t.Helper()
	ctx := context.Background()
	slug := strings.ToLower(strings.ReplaceAll(title, " ", "-"))
	id, _, err := db.UpsertItem(ctx, database.NewItem{
		Title:       title,
		URL:         "http://localhost/" + slug + "/",
		Content:     "<p>" + title + "</p>",
		ContentType: "post",
	})
	if err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if err := db.SetMeta(ctx, id, kv[i], kv[i+1]); err != nil {
			t.Fatalf("SetMeta: %v", err)
		}
	}
	return id
}

func do(srv *Server, method, target string, form url.Values, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func getMeta(t *testing.T, db *database.DB, id int64, key string) string {
	t.Helper()
	v, err := db.GetMeta(context.Background(), id, key)
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	return v
}

func TestDashboardRoute(t *testing.T) {
	db := openTestDB(t)
	addItem(t, db, "SEO Basics", meta.KeyType, "pillar")
	srv := newTestServer(t, db, nil)

	rec := do(srv, "GET", "/", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Bulk Update Nexus Type", "SEO Basics", "Pillar", APIKeyHeader, "<h2>How it works</h2>"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in dashboard", want)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, openTestDB(t), nil)
	if rec := do(srv, "GET", "/nope", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, openTestDB(t), nil)

	rec := do(srv, "GET", "/static/style.css", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), ".seo-score.good") {
		t.Error("expected score styles in stylesheet")
	}
	if rec := do(srv, "GET", "/static/admin.js", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200 for admin.js, got %d", rec.Code)
	}
}

func TestSitemapRoute(t *testing.T) {
	db := openTestDB(t)
	addItem(t, db, "SEO Basics",
		meta.KeyType, "pillar", meta.KeyKeyword, "seo",
		meta.KeyRankMathScore, "85",
		meta.KeyRankMathValidation, `[{"message":"Add an image"}]`)
	addItem(t, db, "SEO Tools",
		meta.KeyType, "sub-pillar", meta.KeyKeyword, "seo tools", meta.KeyParentKeyword, "seo",
		meta.KeyYoastScore, "40")
	addItem(t, db, "Crawlers",
		meta.KeyType, "cluster", meta.KeyKeyword, "crawlers", meta.KeyParentKeyword, "seo tools")
	addItem(t, db, "Lost Topic",
		meta.KeyType, "sub-pillar", meta.KeyKeyword, "lost", meta.KeyParentKeyword, "missing")
	srv := newTestServer(t, db, nil)

	rec := do(srv, "GET", "/sitemap", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"SEO Basics", "SEO Tools", "Crawlers",
		`seo-score good`, `title="Add an image"`,
		`seo-score poor`,
		"1 sub-pillars", "1 clusters",
		"Orphan Sub-Pillars", "Lost Topic",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in sitemap", want)
		}
	}
}

func TestSitemapEmpty(t *testing.T) {
	db := openTestDB(t)
	addItem(t, db, "Untagged")
	srv := newTestServer(t, db, nil)

	rec := do(srv, "GET", "/sitemap", nil, nil)
	if !strings.Contains(rec.Body.String(), "No items with a nexus type found") {
		t.Error("expected empty state")
	}
}

func TestAuditRoute(t *testing.T) {
	db := openTestDB(t)
	addItem(t, db, "Bare Post")
	srv := newTestServer(t, db, nil)

	rec := do(srv, "GET", "/audit", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Bare Post", "No Tags", "No RankMath Keyword", "Not Indexed"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in audit", want)
		}
	}

	rec = do(srv, "GET", "/audit?issue_filter=no_seo_title", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Bare Post") {
		t.Errorf("expected filtered audit to list the item, got %d", rec.Code)
	}

	rec = do(srv, "GET", "/audit?issue_filter=bogus", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown filter, got %d", rec.Code)
	}
}

func TestItemEditor(t *testing.T) {
	db := openTestDB(t)
	id := addItem(t, db, "Crawlers", meta.KeyRankMathFocusKeyword, "web crawlers")
	srv := newTestServer(t, db, nil)
	path := fmt.Sprintf("/items/%d", id)

	rec := do(srv, "GET", path, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Crawlers") {
		t.Error("expected title in editor")
	}

	rec = do(srv, "POST", path, url.Values{
		"nexus_type":           {"cluster"},
		"nexus_keyword":        {""},
		"nexus_parent_keyword": {"seo tools"},
	}, nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, path+"?notice=") {
		t.Errorf("unexpected redirect %q", loc)
	}
	if got := getMeta(t, db, id, meta.KeyType); got != "cluster" {
		t.Errorf("type = %q", got)
	}
	if got := getMeta(t, db, id, meta.KeyParentKeyword); got != "seo tools" {
		t.Errorf("parent keyword = %q", got)
	}
	// Empty keyword is filled from the SEO plugin after saving.
	if got := getMeta(t, db, id, meta.KeyKeyword); got != "web crawlers" {
		t.Errorf("keyword = %q", got)
	}
}

func TestItemEditorErrors(t *testing.T) {
	db := openTestDB(t)
	id := addItem(t, db, "Locked Post")
	checker := access.NewStatic([]string{"edit_posts"})
	checker.Locked = map[int64]bool{id: true}
	srv := newTestServer(t, db, checker)
	path := fmt.Sprintf("/items/%d", id)

	rec := do(srv, "POST", path, url.Values{"nexus_type": {"pillar"}}, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if got := getMeta(t, db, id, meta.KeyType); got != "" {
		t.Errorf("locked item was written: %q", got)
	}

	srv = newTestServer(t, db, nil)
	if rec := do(srv, "POST", path, url.Values{"nexus_type": {"hub"}}, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid type, got %d", rec.Code)
	}
	if rec := do(srv, "GET", "/items/9999", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing item, got %d", rec.Code)
	}
	if rec := do(srv, "GET", "/items/abc", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for bad id, got %d", rec.Code)
	}
}

func TestBulkUpdateRoute(t *testing.T) {
	db := openTestDB(t)
	a := addItem(t, db, "First")
	b := addItem(t, db, "Second")
	srv := newTestServer(t, db, nil)

	rec := do(srv, "POST", "/bulk-update", url.Values{
		"nexus_type": {"pillar"},
		"item_ids":   {fmt.Sprint(a), fmt.Sprint(b)},
	}, nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "notice=Updated+2+items") {
		t.Errorf("unexpected redirect %q", loc)
	}
	for _, id := range []int64{a, b} {
		if got := getMeta(t, db, id, meta.KeyType); got != "pillar" {
			t.Errorf("item %d type = %q", id, got)
		}
	}

	rec = do(srv, "POST", "/bulk-update", url.Values{"item_ids": {fmt.Sprint(a)}}, nil)
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "error=") {
		t.Errorf("expected error redirect, got %q", loc)
	}

	if rec := do(srv, "GET", "/bulk-update", nil, nil); rec.Code != http.StatusFound {
		t.Errorf("expected GET to redirect, got %d", rec.Code)
	}
}

func TestSyncRoute(t *testing.T) {
	db := openTestDB(t)
	id := addItem(t, db, "Synced", meta.KeyYoastFocusKeyword, "yoast keyword")
	addItem(t, db, "Already Set", meta.KeyKeyword, "mine", meta.KeyRankMathFocusKeyword, "other")
	srv := newTestServer(t, db, nil)

	rec := do(srv, "POST", "/sync", url.Values{}, nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "notice=Synced+1+items") {
		t.Errorf("unexpected redirect %q", loc)
	}
	if got := getMeta(t, db, id, meta.KeyKeyword); got != "yoast keyword" {
		t.Errorf("keyword = %q", got)
	}
}

func TestKeywordSuggestions(t *testing.T) {
	db := openTestDB(t)
	addItem(t, db, "A", meta.KeyKeyword, "seo tools")
	addItem(t, db, "B", meta.KeyKeyword, "content marketing")
	srv := newTestServer(t, db, nil)

	rec := do(srv, "GET", "/ajax/keywords?term=seo", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Success bool     `json:"success"`
		Data    []string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success || len(resp.Data) != 1 || resp.Data[0] != "seo tools" {
		t.Errorf("unexpected response: %+v", resp)
	}

	srv = newTestServer(t, db, access.NewStatic(nil))
	rec = do(srv, "GET", "/ajax/keywords?term=seo", nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestLinksAPIRequiresKey(t *testing.T) {
	db := openTestDB(t)
	addItem(t, db, "SEO Basics", meta.KeyType, "pillar")
	srv := newTestServer(t, db, nil)

	for name, header := range map[string]map[string]string{
		"missing": nil,
		"wrong":   {APIKeyHeader: "nope"},
	} {
		rec := do(srv, "GET", "/api/v1/links", nil, header)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s key: expected 401, got %d", name, rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Errorf("%s key: expected empty body, got %q", name, rec.Body.String())
		}
	}
}

func TestLinksAPIEmptySecretRejects(t *testing.T) {
	db := openTestDB(t)
	cfg := config.Default()
	cfg.API.KeyEnv = ""
	srv, err := New(db, cfg, access.AllowAll{}, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	if rec := do(srv, "GET", "/api/v1/links", nil, map[string]string{APIKeyHeader: ""}); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestLinksAPIJSON(t *testing.T) {
	db := openTestDB(t)
	addItem(t, db, "SEO Basics", meta.KeyType, "pillar", meta.KeyKeyword, "seo")
	addItem(t, db, "Crawlers", meta.KeyType, "cluster", meta.KeyKeyword, "crawlers")
	addItem(t, db, "Untagged")
	srv := newTestServer(t, db, nil)
	key := map[string]string{APIKeyHeader: testKey}

	rec := do(srv, "GET", "/api/v1/links", nil, key)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=UTF-8" {
		t.Errorf("unexpected content type %q", ct)
	}
	var links []map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &links); err != nil {
		t.Fatalf("decoding links: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if links[0]["url"] != "http://localhost/seo-basics/" || links[0]["type"] != "pillar" || links[0]["post_type"] != "post" {
		t.Errorf("unexpected link: %v", links[0])
	}

	rec = do(srv, "GET", "/api/v1/links?type=cluster", nil, key)
	links = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &links); err != nil {
		t.Fatalf("decoding links: %v", err)
	}
	if len(links) != 1 || links[0]["title"] != "Crawlers" {
		t.Errorf("unexpected filtered links: %v", links)
	}
}

func TestLinksAPIXML(t *testing.T) {
	db := openTestDB(t)
	addItem(t, db, "Tips & Tricks", meta.KeyType, "pillar", meta.KeyKeyword, "tips")
	srv := newTestServer(t, db, nil)
	key := map[string]string{APIKeyHeader: testKey}

	rec := do(srv, "GET", "/api/v1/links?format=xml", nil, key)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml; charset=UTF-8" {
		t.Errorf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{`<?xml version="1.0" encoding="UTF-8"?>`, "<urlset", "<loc>http://localhost/tips-&amp;-tricks/</loc>", "Tips &amp; Tricks"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in %s", want, body)
		}
	}

	if rec := do(srv, "GET", "/api/v1/links?format=csv", nil, key); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for csv, got %d", rec.Code)
	}
	if rec := do(srv, "POST", "/api/v1/links", url.Values{}, key); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST, got %d", rec.Code)
	}
}
