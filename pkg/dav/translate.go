package dav

import (
	"errors"
	"mime"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittodav/pkg/query"
)

// dateLayouts are tried in order. creationdate is RFC 3339; getlastmodified
// is an HTTP date, but servers mix the two.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123,
	time.RFC1123Z,
	time.RFC850,
	time.ANSIC, // asctime HTTP-date, always GMT
}

var (
	errEmptyValue  = errors.New("empty value")
	errBadDate     = errors.New("unrecognised date format")
	errNegativeLen = errors.New("negative length")
)

// Translator converts multistatus response members into Entries.
//
// basePath is the path component of the server root (e.g.
// "remote.php/webdav"); it is stripped from every href so Entry.Path is
// relative to the root the client was configured with.
type Translator struct {
	basePath string
}

// NewTranslator creates a Translator for hrefs rooted at basePath.
func NewTranslator(basePath string) *Translator {
	return &Translator{basePath: strings.Trim(basePath, "/")}
}

// Value returns the trimmed text of field within node, or "" when the element
// is absent. Unsupported fields fail with a TranslationError wrapping an
// InvalidSelectorError.
func (t *Translator) Value(node query.Node, field Field) (string, error) {
	sel, err := field.Selector()
	if err != nil {
		return "", &TranslationError{Field: field, Err: err}
	}
	matches, err := node.Select(sel)
	if err != nil {
		return "", &TranslationError{Field: field, Err: err}
	}
	return matches.Text(), nil
}

// Translate builds an Entry from one response member.
//
// Content type resolution: the MIME type for the name's extension, else the
// server-reported type, else DirectoryContentType. Kind is Directory exactly
// when the last fallback was used.
func (t *Translator) Translate(node query.Node) (Entry, error) {
	values := make(map[Field]string, len(selectors))
	for field := range selectors {
		v, err := t.Value(node, field)
		if err != nil {
			return Entry{}, err
		}
		values[field] = v
	}

	p, err := t.HrefPath(values[FieldHref])
	if err != nil {
		return Entry{}, &TranslationError{Field: FieldHref, Value: values[FieldHref], Err: err}
	}

	name := values[FieldDisplayName]
	if name == "" {
		name = path.Base("/" + p)
		if name == "/" {
			name = ""
		}
	}

	contentType := contentTypeFor(name, values[FieldContentType])
	kind := File
	if contentType == DirectoryContentType {
		kind = Directory
	}

	size, err := parseSize(values[FieldContentLength])
	if err != nil {
		return Entry{}, &TranslationError{Field: FieldContentLength, Value: values[FieldContentLength], Err: err}
	}
	if kind == Directory {
		size = 0
	}

	created, err := parseDate(values[FieldCreationDate])
	if err != nil {
		return Entry{}, &TranslationError{Field: FieldCreationDate, Value: values[FieldCreationDate], Err: err}
	}

	modified, err := parseDate(values[FieldLastModified])
	if err != nil {
		return Entry{}, &TranslationError{Field: FieldLastModified, Value: values[FieldLastModified], Err: err}
	}

	return Entry{
		Name:        name,
		Path:        p,
		Kind:        kind,
		ContentType: contentType,
		ETag:        values[FieldETag],
		Size:        size,
		Created:     created,
		Modified:    modified,
	}, nil
}

// HrefPath decodes href (absolute URL or absolute path), strips the base
// path and returns the normalized remote path.
func (t *Translator) HrefPath(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	p := strings.Trim(u.Path, "/")
	if t.basePath != "" {
		if p == t.basePath {
			return "", nil
		}
		p = strings.TrimPrefix(p, t.basePath+"/")
	}
	return p, nil
}

func contentTypeFor(name, serverType string) string {
	if ext := path.Ext(name); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	if serverType != "" {
		return serverType
	}
	return DirectoryContentType
}

func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errNegativeLen
	}
	return n, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errEmptyValue
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errBadDate
}

// normalizePath strips leading and trailing separators.
func normalizePath(p string) string {
	return strings.Trim(p, "/")
}

// parentPath returns the parent of a normalized path; the root's parent is
// the root.
func parentPath(p string) string {
	dir := path.Dir("/" + p)
	return normalizePath(dir)
}
