package graph

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ListFolders lists all mail folders. Child folders follow their parent and
// are named with their full path, e.g. "Inbox/Receipts".
func (c *Client) ListFolders(ctx context.Context) ([]Folder, error) {
	return c.listFolders(ctx, "/me/mailFolders?$top=100", "", 0)
}

func (c *Client) listFolders(ctx context.Context, endpoint, parentPath string, depth int) ([]Folder, error) {
	folders := []Folder{}

	for endpoint != "" {
		var page folderList
		if err := c.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, f := range page.Value {
			f.Name = f.DisplayName
			if parentPath != "" {
				f.Name = parentPath + "/" + f.DisplayName
			}
			f.Depth = depth
			folders = append(folders, f)

			if f.ChildFolderCount > 0 {
				children, err := c.listFolders(ctx, childFoldersPath(f.ID), f.Name, depth+1)
				if err != nil {
					return nil, fmt.Errorf("failed to list child folders of %s: %w", f.Name, err)
				}
				folders = append(folders, children...)
			}
		}

		endpoint = page.NextLink
	}

	return folders, nil
}

func childFoldersPath(id string) string {
	return "/me/mailFolders/" + url.PathEscape(id) + "/childFolders?$top=100"
}

// GetFolder fetches one folder by id or well-known name.
func (c *Client) GetFolder(ctx context.Context, id string) (*Folder, error) {
	var f Folder
	if err := c.get(ctx, "/me/mailFolders/"+url.PathEscape(id), &f); err != nil {
		return nil, err
	}
	f.Name = f.DisplayName
	return &f, nil
}

// ResolveFolder turns a user-supplied folder name into something the
// messages endpoint accepts. Well-known names pass through; anything else is
// looked up by display name or path.
func (c *Client) ResolveFolder(ctx context.Context, name string) (string, error) {
	normalized := NormalizeFolder(name)
	if IsWellKnownFolder(normalized) {
		return normalized, nil
	}

	folders, err := c.ListFolders(ctx)
	if err != nil {
		return "", err
	}
	for _, f := range folders {
		if strings.EqualFold(f.Name, name) || strings.EqualFold(f.DisplayName, name) || f.ID == name {
			return f.ID, nil
		}
	}

	return "", fmt.Errorf("folder '%s' not found", name)
}

var folderAliases = map[string]string{
	"inbox":        FolderInbox,
	"sent":         "sentitems",
	"sentitems":    "sentitems",
	"drafts":       "drafts",
	"draft":        "drafts",
	"trash":        FolderDeletedItems,
	"deleted":      FolderDeletedItems,
	"deleteditems": FolderDeletedItems,
	"spam":         FolderJunk,
	"junk":         FolderJunk,
	"junkemail":    FolderJunk,
	"archive":      FolderArchive,
	"outbox":       "outbox",
}

// NormalizeFolder maps common folder names onto Graph well-known names.
// Unknown names are returned lowercased.
func NormalizeFolder(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if wk, ok := folderAliases[lower]; ok {
		return wk
	}
	return lower
}

// IsWellKnownFolder reports whether name is a Graph well-known folder name.
func IsWellKnownFolder(name string) bool {
	for _, wk := range folderAliases {
		if wk == name {
			return true
		}
	}
	return false
}

// ListCategories lists the mailbox master categories.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var list categoryList
	if err := c.get(ctx, "/me/outlook/masterCategories", &list); err != nil {
		return nil, err
	}
	if list.Value == nil {
		list.Value = []Category{}
	}
	return list.Value, nil
}

// Me returns the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/me?$select=id,displayName,mail,userPrincipalName", &u); err != nil {
		return nil, err
	}
	return &u, nil
}
