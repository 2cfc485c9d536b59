package main

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexjbarnes/sealbox/internal/models"
	"github.com/alexjbarnes/sealbox/internal/state"
	"github.com/alexjbarnes/sealbox/internal/tree"
)

type unitDoc struct {
	ID      string `yaml:"id"`
	Type    string `yaml:"type"`
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
	Mime    string `yaml:"mime,omitempty"`
	Size    int64  `yaml:"encrypted_size,omitempty"`
	Updated string `yaml:"updated,omitempty"`
}

type treeDoc struct {
	Collection string    `yaml:"collection"`
	Kind       string    `yaml:"kind"`
	Focus      *unitDoc  `yaml:"focus,omitempty"`
	Parents    []unitDoc `yaml:"parents,omitempty"`
	Children   []unitDoc `yaml:"children"`
}

type historyDoc struct {
	Seq       uint64 `yaml:"seq"`
	At        string `yaml:"at"`
	Operation string `yaml:"operation"`
	Outcome   string `yaml:"outcome"`
	Kind      string `yaml:"kind,omitempty"`
	Error     string `yaml:"error,omitempty"`
	Params    string `yaml:"params,omitempty"`
	RequestID string `yaml:"request_id"`
}

func unitToDoc(u models.Unit) unitDoc {
	d := unitDoc{ID: u.UnitID(), Type: string(u.UnitType()), Name: u.UnitName()}

	if f, ok := u.(models.FileMetadata); ok {
		d.Version = f.VersionID
		d.Mime = f.MimeType
		d.Size = f.EncryptedSize

		if !f.UpdatedAt.IsZero() {
			d.Updated = f.UpdatedAt.UTC().Format(time.RFC3339)
		}
	}

	return d
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}

	return enc.Close()
}

// renderTree writes one neighbourhood as YAML. Parents are listed root
// first so the output reads as a path.
func renderTree(w io.Writer, collectionID string, t tree.ObjectTree) error {
	doc := treeDoc{
		Collection: collectionID,
		Kind:       t.Kind.String(),
		Children:   make([]unitDoc, 0, len(t.Children)),
	}

	if t.Metadata != nil {
		f := unitToDoc(t.Metadata)
		doc.Focus = &f
	}

	for i := len(t.Parents) - 1; i >= 0; i-- {
		doc.Parents = append(doc.Parents, unitToDoc(t.Parents[i]))
	}

	for _, c := range t.Children {
		doc.Children = append(doc.Children, unitToDoc(c))
	}

	return writeYAML(w, doc)
}

func renderUnit(w io.Writer, u models.Unit) error {
	return writeYAML(w, unitToDoc(u))
}

func renderHistory(w io.Writer, records []state.Record) error {
	docs := make([]historyDoc, 0, len(records))

	for _, r := range records {
		docs = append(docs, historyDoc{
			Seq:       r.Sequence,
			At:        r.At.UTC().Format(time.RFC3339),
			Operation: r.Operation,
			Outcome:   r.Outcome,
			Kind:      r.ErrorKind,
			Error:     r.Error,
			Params:    string(r.Params),
			RequestID: r.RequestID,
		})
	}

	return writeYAML(w, docs)
}
