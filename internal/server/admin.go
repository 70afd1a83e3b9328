package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/TobiSchelling/nexus/internal/access"
	"github.com/TobiSchelling/nexus/internal/audit"
	"github.com/TobiSchelling/nexus/internal/editor"
	"github.com/TobiSchelling/nexus/internal/hierarchy"
	"github.com/TobiSchelling/nexus/internal/meta"
	"github.com/TobiSchelling/nexus/internal/seoscore"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("paged"))
	listing, err := s.editor.List(r.Context(), editor.ListQuery{
		ContentType: q.Get("post_type_filter"),
		Page:        page,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.render(w, "dashboard.html", map[string]any{
		"Nav":       "dashboard",
		"Notice":    q.Get("notice"),
		"Error":     q.Get("error"),
		"Listing":   listing,
		"Types":     meta.AllTypes,
		"APIURL":    requestBase(r) + "/api/v1/links",
		"APIHeader": APIKeyHeader,
		"APIKeyEnv": s.cfg.API.KeyEnv,
		"APIKeySet": s.apiKey != "",
		"Docs":      docsMarkdown,
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	synced, err := s.sync.BulkSync(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	redirectNotice(w, r, "/", fmt.Sprintf("Synced %d items with keywords from SEO plugins.", synced))
}

func (s *Server) handleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	back := "/"
	if pt := r.PostForm.Get("post_type_filter"); pt != "" {
		back = "/?post_type_filter=" + url.QueryEscape(pt)
	}

	nexusType := strings.TrimSpace(r.PostForm.Get("nexus_type"))
	var ids []int64
	for _, raw := range r.PostForm["item_ids"] {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}

	updated, err := s.editor.BulkUpdateType(r.Context(), nexusType, ids)
	switch {
	case errors.Is(err, editor.ErrValidation):
		redirectError(w, r, back, "Please select a Nexus Type and at least one item.")
		return
	case err != nil:
		s.fail(w, r, err)
		return
	}
	redirectNotice(w, r, back, fmt.Sprintf("Updated %d items to %q.", updated, nexusType))
}

type sitemapNode struct {
	meta.Tagged
	SEO      seoscore.Record
	Children []sitemapNode
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tree, err := hierarchy.Load(ctx, s.store)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var pillars, orphans []sitemapNode
	for _, p := range tree.Pillars {
		node, err := s.node(ctx, p.Tagged)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		for _, sp := range p.SubPillars {
			child, err := s.subPillarNode(ctx, tree, sp)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			node.Children = append(node.Children, child)
		}
		pillars = append(pillars, node)
	}
	for _, sp := range tree.OrphanSubPillars {
		node, err := s.subPillarNode(ctx, tree, sp)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		orphans = append(orphans, node)
	}

	s.render(w, "sitemap.html", map[string]any{
		"Nav":     "sitemap",
		"Pillars": pillars,
		"Orphans": orphans,
		"Counts":  tree.Counts(),
		"Empty":   tree.Empty(),
	})
}

func (s *Server) subPillarNode(ctx context.Context, tree *hierarchy.Tree, sp meta.Tagged) (sitemapNode, error) {
	node, err := s.node(ctx, sp)
	if err != nil {
		return node, err
	}
	for _, c := range tree.Clusters(sp) {
		child, err := s.node(ctx, c)
		if err != nil {
			return node, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func (s *Server) node(ctx context.Context, t meta.Tagged) (sitemapNode, error) {
	rec, err := s.resolver.Resolve(ctx, t.ID)
	if err != nil {
		return sitemapNode{}, err
	}
	return sitemapNode{Tagged: t, SEO: rec}, nil
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("paged"))
	issue := meta.SanitizeText(q.Get("issue_filter"))

	report, err := s.audit.FindIncomplete(r.Context(), audit.Query{Page: page, Issue: issue})
	switch {
	case errors.Is(err, audit.ErrUnknownIssue):
		http.Error(w, "Unknown issue filter", http.StatusBadRequest)
		return
	case err != nil:
		s.fail(w, r, err)
		return
	}

	s.render(w, "audit.html", map[string]any{
		"Nav":     "audit",
		"Report":  report,
		"Issue":   issue,
		"Filters": audit.Filters,
	})
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/items/"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if r.Method == http.MethodPost {
		err := s.editor.SaveItem(r.Context(), id, editor.Fields{
			Type:          r.FormValue("nexus_type"),
			Keyword:       r.FormValue("nexus_keyword"),
			ParentKeyword: r.FormValue("nexus_parent_keyword"),
		})
		if err != nil {
			s.editorError(w, r, err)
			return
		}
		redirectNotice(w, r, fmt.Sprintf("/items/%d", id), "Saved.")
		return
	}

	item, err := s.editor.Load(r.Context(), id)
	if err != nil {
		s.editorError(w, r, err)
		return
	}
	s.render(w, "item.html", map[string]any{
		"Nav":    "",
		"Item":   item,
		"Types":  meta.AllTypes,
		"Notice": r.URL.Query().Get("notice"),
	})
}

func (s *Server) editorError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, editor.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, editor.ErrPermissionDenied):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, editor.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.fail(w, r, err)
	}
}

type ajaxResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func (s *Server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	if !s.access.CurrentUserCan(r.Context(), access.EditPosts) {
		writeJSON(w, http.StatusForbidden, ajaxResponse{Success: false, Data: "permission denied"})
		return
	}

	kws, err := s.editor.Keywords(r.Context(), r.URL.Query().Get("term"))
	if err != nil {
		s.log.Error("keyword search failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ajaxResponse{Success: false, Data: "keyword search failed"})
		return
	}
	writeJSON(w, http.StatusOK, ajaxResponse{Success: true, Data: kws})
}

func redirectNotice(w http.ResponseWriter, r *http.Request, target, msg string) {
	http.Redirect(w, r, withParam(target, "notice", msg), http.StatusFound)
}

func redirectError(w http.ResponseWriter, r *http.Request, target, msg string) {
	http.Redirect(w, r, withParam(target, "error", msg), http.StatusFound)
}

func withParam(target, key, value string) string {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + key + "=" + url.QueryEscape(value)
}

// requestBase returns scheme://host of the request.
func requestBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
