package content

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/ZacxDev/pagesgen/module"
	"github.com/ZacxDev/pagesgen/output"
	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
)

// DocumentsMarker precedes the JSON array of generated documents on the
// CLI's stdout. Anything before it is progress output.
const DocumentsMarker = "Generated documents:"

// CLIFetcher generates documents on demand by running an external command,
// for example "yext pages generate-test-data".
type CLIFetcher struct {
	Command string
	Dir     string
	Feature string
}

func (f *CLIFetcher) FetchDocument(ctx context.Context, entityID, locale string, stream *module.Stream) (module.Document, error) {
	args, err := shellquote.Split(f.Command)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing content command %q", f.Command)
	}
	if len(args) == 0 {
		return nil, errors.New("content command is empty")
	}

	if stream != nil {
		streamJSON, err := json.Marshal(stream)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		args = append(args, "--stream", string(streamJSON))
	}
	if f.Feature != "" {
		args = append(args, "--featureName", f.Feature)
	}
	args = append(args, "--entityId", entityID, "--locale", locale, "--printDocuments")

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = f.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	output.Debug("running content command", "cmd", shellquote.Join(args...))
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "running %s: %s", args[0], strings.TrimSpace(stderr.String()))
	}

	docs, err := ParseGenerated(stdout.String())
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if EntityID(doc) == entityID && CanonicalLocale(Locale(doc)) == CanonicalLocale(locale) {
			return doc, nil
		}
	}
	if len(docs) == 1 && EntityID(docs[0]) == "" {
		return docs[0], nil
	}
	return nil, nil
}

// ParseGenerated extracts the documents printed after DocumentsMarker.
// Output without the marker yields no documents.
func ParseGenerated(stdout string) ([]module.Document, error) {
	i := strings.Index(stdout, DocumentsMarker)
	if i < 0 {
		return nil, nil
	}
	payload := strings.TrimSpace(stdout[i+len(DocumentsMarker):])
	if payload == "" {
		return nil, nil
	}

	var docs []module.Document
	if err := json.NewDecoder(strings.NewReader(payload)).Decode(&docs); err != nil {
		return nil, errors.Wrap(err, "parsing generated documents")
	}
	return docs, nil
}
