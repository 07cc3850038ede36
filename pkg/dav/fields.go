package dav

// Field names a metadata property of a multistatus response.
type Field string

// Supported fields. Only these may be extracted or sorted by.
const (
	FieldDisplayName   Field = "displayname"
	FieldContentType   Field = "getcontenttype"
	FieldCreationDate  Field = "creationdate"
	FieldLastModified  Field = "getlastmodified"
	FieldETag          Field = "getetag"
	FieldContentLength Field = "getcontentlength"
	FieldHref          Field = "href"
)

// responseSelector matches each member of a multistatus body.
const responseSelector = "multistatus/response"

// selectors maps each field to its path relative to a response element.
// Properties live under propstat/prop; href is a direct child.
var selectors = map[Field]string{
	FieldDisplayName:   "propstat/prop/displayname",
	FieldContentType:   "propstat/prop/getcontenttype",
	FieldCreationDate:  "propstat/prop/creationdate",
	FieldLastModified:  "propstat/prop/getlastmodified",
	FieldETag:          "propstat/prop/getetag",
	FieldContentLength: "propstat/prop/getcontentlength",
	FieldHref:          "href",
}

// Selector returns the element path for f.
func (f Field) Selector() (string, error) {
	sel, ok := selectors[f]
	if !ok {
		return "", &InvalidSelectorError{Selector: string(f)}
	}
	return sel, nil
}

// ParseField validates name against the supported fields.
func ParseField(name string) (Field, error) {
	f := Field(name)
	if _, err := f.Selector(); err != nil {
		return "", err
	}
	return f, nil
}

// propfindBody asks for exactly the properties the translator reads.
const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:">
  <d:prop>
    <d:displayname/>
    <d:getcontenttype/>
    <d:creationdate/>
    <d:getlastmodified/>
    <d:getetag/>
    <d:getcontentlength/>
  </d:prop>
</d:propfind>`
