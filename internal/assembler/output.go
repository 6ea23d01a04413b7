package assembler

import (
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\[([a-z]+)(?::(\d+))?\]`)

// ResolveOutputPath substitutes a logical name and content hash into an
// output filename pattern and joins the result onto base.
//
// logicalName may carry an extension and a query ("logo.png?v=1"); they feed
// the [ext] and [query] placeholders and [name] receives the bare base name.
// [hash] and [contenthash] both receive contentHash, truncated when the
// placeholder carries a length.
func ResolveOutputPath(base, pattern, logicalName, contentHash string) string {
	name, query, _ := strings.Cut(logicalName, "?")
	if query != "" {
		query = "?" + query
	}
	name = path.Base(filepath.ToSlash(name))
	ext := path.Ext(name)
	name = strings.TrimSuffix(name, ext)

	resolved := placeholder.ReplaceAllStringFunc(pattern, func(token string) string {
		m := placeholder.FindStringSubmatch(token)
		switch m[1] {
		case "name":
			return name
		case "ext":
			return ext
		case "query":
			return query
		case "hash", "contenthash":
			return truncate(contentHash, m[2])
		default:
			return token
		}
	})

	if base == "" {
		return filepath.FromSlash(resolved)
	}

	return filepath.Join(base, filepath.FromSlash(resolved))
}

func truncate(hash, length string) string {
	if length == "" {
		return hash
	}

	n, err := strconv.Atoi(length)
	if err != nil || n >= len(hash) {
		return hash
	}

	return hash[:n]
}
