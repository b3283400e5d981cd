package lsp

import (
	"net/url"
	"path/filepath"
	"strings"
)

// filePath maps a document URI to a filesystem path. Untitled buffers and
// other virtual schemes have no path; their configuration is looked up from
// the workspace root instead.
func filePath(uri string) (string, bool) {
	if uri == "" {
		return "", false
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", false
	}

	var p string
	switch parsed.Scheme {
	case "file":
		p = parsed.Path
		// file:///C:/x keeps a leading slash before the drive letter.
		if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
			p = p[1:]
		}
	case "":
		p = uri
	default:
		return "", false
	}

	p = filepath.Clean(filepath.FromSlash(p))
	if !filepath.IsAbs(p) {
		return "", false
	}
	return p, true
}

// workspaceRoot picks the root from initialize params, preferring rootUri,
// then rootPath, then the first workspace folder.
func workspaceRoot(params initializeParams) string {
	if root, ok := filePath(params.RootURI); ok {
		return root
	}
	if params.RootPath != "" {
		if abs, err := filepath.Abs(params.RootPath); err == nil {
			return abs
		}
	}
	for _, folder := range params.WorkspaceFolders {
		if root, ok := filePath(folder.URI); ok {
			return root
		}
	}
	return ""
}

// isUntitled reports whether uri names an unsaved editor buffer.
func isUntitled(uri string) bool {
	return strings.HasPrefix(uri, "untitled:")
}
