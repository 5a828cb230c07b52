// Package content supplies the documents templates are rendered with,
// either from JSON files under localData or from an external CLI.
package content

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ZacxDev/pagesgen/module"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
)

// Fetcher returns the document for one entity and locale. A nil document
// with a nil error means no such record exists.
type Fetcher interface {
	FetchDocument(ctx context.Context, entityID, locale string, stream *module.Stream) (module.Document, error)
}

// CanonicalLocale normalizes locale tags so that "en_us", "en-US" and
// "EN-us" address the same record.
func CanonicalLocale(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return ""
	}
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return strings.ToLower(locale)
	}
	return tag.String()
}

// EntityID returns the record's id, accepting either "id" or "entityId".
func EntityID(doc module.Document) string {
	for _, key := range []string{"id", "entityId"} {
		switch v := doc[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// Locale returns the record's locale from "locale" or meta.locale.
func Locale(doc module.Document) string {
	if l, ok := doc["locale"].(string); ok && l != "" {
		return l
	}
	if meta, ok := doc["meta"].(map[string]interface{}); ok {
		if l, ok := meta["locale"].(string); ok {
			return l
		}
	}
	return ""
}

// StreamID returns the stream marker the generator stamps under "__".
func StreamID(doc module.Document) string {
	if marker, ok := doc["__"].(map[string]interface{}); ok {
		if id, ok := marker["streamId"].(string); ok {
			return id
		}
	}
	return ""
}

type recordKey struct {
	entityID string
	locale   string
}

// LocalStore indexes the JSON documents in a localData directory. Each file
// holds one document or an array of documents.
type LocalStore struct {
	dir string

	once  sync.Once
	err   error
	order []recordKey
	byKey map[recordKey]module.Document
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) load() error {
	s.once.Do(func() {
		s.byKey = make(map[recordKey]module.Document)

		files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
		if err != nil {
			s.err = errors.WithStack(err)
			return
		}
		sort.Strings(files)

		for _, file := range files {
			docs, err := readDocuments(file)
			if err != nil {
				s.err = err
				return
			}
			for _, doc := range docs {
				key := recordKey{entityID: EntityID(doc), locale: CanonicalLocale(Locale(doc))}
				if _, exists := s.byKey[key]; exists {
					continue
				}
				s.byKey[key] = doc
				s.order = append(s.order, key)
			}
		}
	})
	return s.err
}

func readDocuments(file string) ([]module.Document, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var docs []module.Document
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", file)
		}
		return docs, nil
	}

	var doc module.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", file)
	}
	return []module.Document{doc}, nil
}

func matchesStream(doc module.Document, streamID string) bool {
	if streamID == "" {
		return true
	}
	marker := StreamID(doc)
	return marker == "" || marker == streamID
}

func streamIDOf(stream *module.Stream) string {
	if stream == nil {
		return ""
	}
	return stream.ID
}

func (s *LocalStore) FetchDocument(ctx context.Context, entityID, locale string, stream *module.Stream) (module.Document, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	doc, ok := s.byKey[recordKey{entityID: entityID, locale: CanonicalLocale(locale)}]
	if !ok || !matchesStream(doc, streamIDOf(stream)) {
		return nil, nil
	}
	return doc, nil
}

// Documents lists every record that belongs to streamID, in file order.
func (s *LocalStore) Documents(streamID string) ([]module.Document, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	var docs []module.Document
	for _, key := range s.order {
		doc := s.byKey[key]
		if matchesStream(doc, streamID) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}
