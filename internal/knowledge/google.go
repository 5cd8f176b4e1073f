package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/docs/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Scopes are the OAuth scopes the service account needs.
var Scopes = []string{docs.DocumentsScope, sheets.SpreadsheetsScope}

// GoogleDoc is a Document backed by Google Docs.
type GoogleDoc struct {
	srv *docs.Service
	id  string
}

// NewGoogleDoc connects to the Docs API with the service account key at
// credentialsFile.
func NewGoogleDoc(ctx context.Context, credentialsFile, documentID string) (*GoogleDoc, error) {
	srv, err := docs.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(Scopes...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docs client: %w", err)
	}
	return &GoogleDoc{srv: srv, id: documentID}, nil
}

// Text implements Document.
func (d *GoogleDoc) Text(ctx context.Context) (string, error) {
	doc, err := d.srv.Documents.Get(d.id).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get document %s: %w", d.id, err)
	}
	return DocumentText(doc), nil
}

// Append implements Document by inserting text just before the document's
// final newline.
func (d *GoogleDoc) Append(ctx context.Context, text string) error {
	doc, err := d.srv.Documents.Get(d.id).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get document %s: %w", d.id, err)
	}
	index, err := endIndex(doc)
	if err != nil {
		return err
	}
	req := &docs.BatchUpdateDocumentRequest{
		Requests: []*docs.Request{{
			InsertText: &docs.InsertTextRequest{
				Location: &docs.Location{Index: index},
				Text:     text,
			},
		}},
	}
	if _, err := d.srv.Documents.BatchUpdate(d.id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update document %s: %w", d.id, err)
	}
	return nil
}

// DocumentText concatenates the text runs of every paragraph.
func DocumentText(doc *docs.Document) string {
	if doc == nil || doc.Body == nil {
		return ""
	}
	var sb strings.Builder
	for _, el := range doc.Body.Content {
		if el == nil || el.Paragraph == nil {
			continue
		}
		for _, pe := range el.Paragraph.Elements {
			if pe != nil && pe.TextRun != nil {
				sb.WriteString(pe.TextRun.Content)
			}
		}
	}
	return sb.String()
}

func endIndex(doc *docs.Document) (int64, error) {
	if doc.Body == nil || len(doc.Body.Content) == 0 {
		return 0, errors.New("document has no body")
	}
	last := doc.Body.Content[len(doc.Body.Content)-1]
	if last.EndIndex < 2 {
		return 1, nil
	}
	return last.EndIndex - 1, nil
}

// GoogleSheet is a Sheet backed by the first worksheet of a spreadsheet.
type GoogleSheet struct {
	srv *sheets.Service
	id  string
}

// NewGoogleSheet connects to the Sheets API with the service account key at
// credentialsFile.
func NewGoogleSheet(ctx context.Context, credentialsFile, spreadsheetID string) (*GoogleSheet, error) {
	srv, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(Scopes...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return &GoogleSheet{srv: srv, id: spreadsheetID}, nil
}

// FirstColumn implements Sheet.
func (s *GoogleSheet) FirstColumn(ctx context.Context) ([]string, error) {
	vr, err := s.srv.Spreadsheets.Values.Get(s.id, "A:A").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", s.id, err)
	}
	var out []string
	for _, row := range vr.Values {
		if len(row) == 0 {
			continue
		}
		out = append(out, fmt.Sprint(row[0]))
	}
	return out, nil
}

// AppendRow implements Sheet.
func (s *GoogleSheet) AppendRow(ctx context.Context, row []string) error {
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := s.srv.Spreadsheets.Values.Append(s.id, "A:C", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", s.id, err)
	}
	return nil
}
