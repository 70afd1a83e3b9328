// Package access answers "may the current user do X" for the admin surfaces.
package access

import "context"

// Capability names follow the publishing platform's vocabulary.
type Capability string

const (
	// ManageOptions gates bulk operations (bulk sync, bulk type update).
	ManageOptions Capability = "manage_options"
	// EditPosts gates writing nexus metadata on individual items.
	EditPosts Capability = "edit_posts"
)

// Checker is the Identity/Permission Provider contract.
type Checker interface {
	CurrentUserCan(ctx context.Context, c Capability) bool
	// CanEditItem reports whether the current user may edit one item.
	CanEditItem(ctx context.Context, itemID int64) bool
}

// Static grants a fixed capability set to whoever operates the process.
// Item-level edit rights follow EditPosts unless an item is listed in Locked.
type Static struct {
	caps   map[Capability]bool
	Locked map[int64]bool
}

// NewStatic builds a Static checker from capability names.
func NewStatic(names []string) *Static {
	s := &Static{caps: make(map[Capability]bool, len(names))}
	for _, n := range names {
		s.caps[Capability(n)] = true
	}
	return s
}

func (s *Static) CurrentUserCan(_ context.Context, c Capability) bool {
	return s.caps[c]
}

func (s *Static) CanEditItem(ctx context.Context, itemID int64) bool {
	if s.Locked[itemID] {
		return false
	}
	return s.CurrentUserCan(ctx, EditPosts)
}

// AllowAll grants every capability. Used by the CLI, which runs as the site operator.
type AllowAll struct{}

func (AllowAll) CurrentUserCan(context.Context, Capability) bool { return true }
func (AllowAll) CanEditItem(context.Context, int64) bool { return true }
