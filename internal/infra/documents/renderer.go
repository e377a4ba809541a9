// Package documents writes printable contract documents to local storage.
package documents

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"agri_rental/internal/domain/contract"
)

var contractTemplate = template.Must(template.New("contract").Parse(`AGRICULTURAL LAND LEASE AGREEMENT

Contract number: {{.ContractNumber}}
Booking:         #{{.BookingID}}
Tenant:          user #{{.UserID}}
Lease period:    {{.StartDate.Format "2006-01-02"}} to {{.EndDate.Format "2006-01-02"}}
Status:          {{.Status}}
{{- if .SignedAt.Valid}}
Signed at:       {{.SignedAt.Time.Format "2006-01-02 15:04 MST"}}
{{- end}}
`))

// TextRenderer renders contracts as plain text files under Dir.
type TextRenderer struct {
	Dir string
}

func NewTextRenderer(dir string) *TextRenderer {
	return &TextRenderer{Dir: dir}
}

// Render writes contract_<id>.txt and returns its path. The file is replaced
// atomically so a reader never sees a half-written document.
func (r *TextRenderer) Render(ctx context.Context, c *contract.Contract) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := contractTemplate.Execute(&buf, c); err != nil {
		return "", fmt.Errorf("error rendering contract %d: %w", c.ID, err)
	}

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating document directory: %w", err)
	}

	path := filepath.Join(r.Dir, fmt.Sprintf("contract_%d.txt", c.ID))
	tmp, err := os.CreateTemp(r.Dir, ".contract-*")
	if err != nil {
		return "", fmt.Errorf("error creating temporary document: %w", err)
	}
	defer os.Remove(tmp.Name()) // No-op after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("error writing contract document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("error closing contract document: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("error storing contract document: %w", err)
	}
	return path, nil
}
