// Package barcode decodes document barcodes into a document type and detail
// line id. Codes that cannot be matched are queued for manual indexing rather
// than silently dropped.
package barcode

import (
	"errors"
	"fmt"
	"strings"
)

// Template placeholders.
const (
	documentTypeToken = "{documentType}"
	detailLineToken   = "{detailLineId}"
)

// DocumentType is one known, configured document type.
type DocumentType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Match is a successfully decoded barcode.
type Match struct {
	DocumentTypeID   string `json:"document_type_id"`
	DocumentTypeName string `json:"document_type_name"`
	DetailLineID     string `json:"detail_line_id"`
}

type Config struct {
	// Separator splits both the template and the barcode. Defaults to "-".
	Separator string

	// Template positions the tokens, e.g. "{documentType}-{detailLineId}".
	// Ignored in fixed-prefix mode.
	Template string

	// FixedDocumentType switches to fixed-prefix mode: the whole barcode is
	// the detail line id and the document type is this configured name.
	FixedDocumentType string

	DocumentTypes []DocumentType
}

type Matcher struct {
	separator    string
	fixedType    string
	typeIndex    int
	detailIndex  int
	segmentCount int
	types        map[string]DocumentType
}

// ParseDocumentTypes parses a comma-separated list of "id=name" pairs, the
// form document types arrive in from CLI flags.
func ParseDocumentTypes(raw string) ([]DocumentType, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	pairs := strings.Split(raw, ",")
	types := make([]DocumentType, 0, len(pairs))

	for _, pair := range pairs {
		id, name, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found || id == "" || name == "" {
			return nil, fmt.Errorf("malformed document type '%s', expected id=name", pair)
		}

		types = append(types, DocumentType{ID: id, Name: name})
	}

	return types, nil
}

func NewMatcher(config Config) (*Matcher, error) {
	if len(config.DocumentTypes) == 0 {
		return nil, errors.New("at least one document type is required")
	}

	matcher := &Matcher{
		separator:   config.Separator,
		fixedType:   config.FixedDocumentType,
		typeIndex:   -1,
		detailIndex: -1,
		types:       make(map[string]DocumentType, len(config.DocumentTypes)),
	}

	if matcher.separator == "" {
		matcher.separator = "-"
	}

	for _, docType := range config.DocumentTypes {
		matcher.types[strings.ToLower(docType.Name)] = docType
	}

	if matcher.fixedType != "" {
		return matcher, nil
	}

	if config.Template == "" {
		return nil, errors.New("a barcode template or a fixed document type is required")
	}

	segments := strings.Split(config.Template, matcher.separator)
	matcher.segmentCount = len(segments)

	for i, segment := range segments {
		switch strings.TrimSpace(segment) {
		case documentTypeToken:
			matcher.typeIndex = i
		case detailLineToken:
			matcher.detailIndex = i
		}
	}

	if matcher.typeIndex < 0 || matcher.detailIndex < 0 {
		return nil, fmt.Errorf("barcode template must contain %s and %s", documentTypeToken, detailLineToken)
	}

	return matcher, nil
}

// Match decodes one barcode. The returned error names the reason the code
// could not be matched, which becomes the manual-indexing reason.
func (m *Matcher) Match(code string) (*Match, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("barcode is empty")
	}

	if m.fixedType != "" {
		docType, ok := m.types[strings.ToLower(m.fixedType)]
		if !ok {
			return nil, fmt.Errorf("fixed document type '%s' is not a known document type", m.fixedType)
		}

		return &Match{
			DocumentTypeID:   docType.ID,
			DocumentTypeName: docType.Name,
			DetailLineID:     code,
		}, nil
	}

	segments := strings.Split(code, m.separator)
	if len(segments) < m.segmentCount {
		return nil, fmt.Errorf("barcode has %d segment(s), template expects %d", len(segments), m.segmentCount)
	}

	typeToken := strings.TrimSpace(segments[m.typeIndex])

	docType, ok := m.types[strings.ToLower(typeToken)]
	if !ok {
		return nil, fmt.Errorf("'%s' is not a known document type", typeToken)
	}

	detailLine := strings.TrimSpace(segments[m.detailIndex])
	if detailLine == "" {
		return nil, errors.New("barcode has an empty detail line segment")
	}

	return &Match{
		DocumentTypeID:   docType.ID,
		DocumentTypeName: docType.Name,
		DetailLineID:     detailLine,
	}, nil
}
