// Package portable moves ring contents in and out as JSON documents:
// schema-validated import, export, and jq-based output filtering.
package portable

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/keyfob/keyfob/internal/store"
	"github.com/keyfob/keyfob/internal/vault"
	"github.com/keyfob/keyfob/pkg/schema"
)

// DocumentVersion is the current export format version.
const DocumentVersion = 1

// Document is the portable representation of a ring. Secrets travel in
// plaintext (base64) so a document imports under a different master key;
// callers are expected to treat the file like the credentials themselves.
type Document struct {
	Version int        `json:"version"`
	Ring    string     `json:"ring"`
	Entries []DocEntry `json:"entries"`
}

// DocEntry is one exported entry.
type DocEntry struct {
	DisplayName string            `json:"display_name"`
	Attributes  map[string]string `json:"attributes"`
	Secret      string            `json:"secret"` // base64-encoded plaintext
}

// documentSchemaJSON validates imported documents before anything touches
// the store. Embedded as a constant to avoid filesystem dependencies.
const documentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://keyfob.dev/schemas/export.json",
  "type": "object",
  "required": ["version", "ring", "entries"],
  "properties": {
    "version": { "type": "integer", "const": 1 },
    "ring": { "type": "string", "minLength": 1 },
    "entries": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["display_name", "attributes", "secret"],
        "properties": {
          "display_name": { "type": "string", "minLength": 1 },
          "attributes": {
            "type": "object",
            "additionalProperties": { "type": "string" }
          },
          "secret": { "type": "string" }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

func compileDocumentSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("https://keyfob.dev/schemas/export.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("https://keyfob.dev/schemas/export.json")
}

// Export collects every entry of the ring into a Document, unsealing the
// secrets.
func Export(ctx context.Context, st store.Store, sealer *vault.Sealer, ring string) (*Document, error) {
	entries, err := st.FindEntries(ctx, ring, nil)
	if err != nil {
		return nil, err
	}

	doc := &Document{Version: DocumentVersion, Ring: ring, Entries: make([]DocEntry, 0, len(entries))}
	for _, e := range entries {
		secret, err := sealer.Open(e.Secret)
		if err != nil {
			return nil, err
		}
		doc.Entries = append(doc.Entries, DocEntry{
			DisplayName: e.DisplayName,
			Attributes:  e.Attributes,
			Secret:      base64.StdEncoding.EncodeToString(secret),
		})
	}
	return doc, nil
}

// Import validates data against the document schema and stores each entry
// into the ring, sealing secrets on the way in. Returns the number of
// entries imported. Nothing is written when validation fails.
func Import(ctx context.Context, st store.Store, sealer *vault.Sealer, ring string, data []byte) (int, error) {
	compiled, err := compileDocumentSchema()
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeValidation,
			"compile document schema: %s", err.Error()).WithCause(err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeValidation,
			"parse document: %s", err.Error()).WithCause(err)
	}
	if err := compiled.Validate(instance); err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeValidation,
			"invalid document: %s", err.Error()).WithCause(err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeValidation,
			"parse document: %s", err.Error()).WithCause(err)
	}

	// Decode every secret up front so a malformed entry aborts before any
	// store writes.
	secrets := make([][]byte, len(doc.Entries))
	for i, entry := range doc.Entries {
		secret, err := base64.StdEncoding.DecodeString(entry.Secret)
		if err != nil {
			return 0, schema.NewErrorf(schema.ErrCodeValidation,
				"entry %q: secret is not valid base64", entry.DisplayName).WithCause(err)
		}
		secrets[i] = secret
	}

	for i, entry := range doc.Entries {
		sealed, err := sealer.Seal(secrets[i])
		if err != nil {
			return i, err
		}
		if _, err := st.CreateEntry(ctx, ring, entry.DisplayName, entry.Attributes, sealed, true); err != nil {
			return i, err
		}
	}
	return len(doc.Entries), nil
}
