package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/loan-assistant/agent/contract"
	"github.com/tanpawarit/loan-assistant/agent/underwriting"
)

type Config struct {
	Dir string `envconfig:"DOCUMENT_DIR" split_words:"true" default:"./documents"`
}

// SanctionLetterGenerator renders approved applications as PDF sanction
// letters. The returned reference is the file name inside Dir.
type SanctionLetterGenerator struct {
	dir string
	now func() time.Time
}

var _ contractx.DocumentGenerator = (*SanctionLetterGenerator)(nil)

func NewSanctionLetterGenerator(cfg Config) (*SanctionLetterGenerator, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, errors.New("document dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	return &SanctionLetterGenerator{dir: dir, now: time.Now}, nil
}

func (g *SanctionLetterGenerator) Dir() string {
	return g.dir
}

func (g *SanctionLetterGenerator) Generate(ctx context.Context, req contractx.DocumentRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Name) == "" {
		return "", fmt.Errorf("%w: applicant name is required", contractx.ErrDocumentFailed)
	}

	issued := g.now().UTC()
	name := fileName(req.Name, issued)

	pdf := fpdf.New("P", "mm", "A4", "")
	// core fonts are cp1252; the rupee sign is spelled out
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Personal Loan Sanction Letter", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 12, "PERSONAL LOAN SANCTION LETTER", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 12)
	line := func(label, value string) {
		pdf.CellFormat(60, 9, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 9, tr(value), "", 1, "L", false, 0, "")
	}

	line("Date:", issued.Format("02 Jan 2006"))
	line("Customer Name:", req.Name)
	if req.GuestID != "" {
		line("Guest ID:", req.GuestID)
	}
	line("Loan Amount:", rupees(req.Amount))
	line("Tenure:", fmt.Sprintf("%d months", req.TenureMonths))
	if req.Salary != nil {
		line("Monthly Salary:", rupees(*req.Salary))
	}
	if req.PreapprovedLimit != nil {
		line("Pre-approved Limit:", rupees(*req.PreapprovedLimit))
	}
	if req.CreditScore != nil {
		line("Credit Score:", fmt.Sprintf("%d", *req.CreditScore))
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 9, "Status: APPROVED", "", 1, "L", false, 0, "")

	path := filepath.Join(g.dir, name)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrDocumentFailed, err)
	}

	log.Debug().Str("file", name).Int64("amount", req.Amount).Msg("sanction letter generated")
	return name, nil
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

func fileName(applicant string, at time.Time) string {
	slug := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(applicant), "_"), "_")
	if slug == "" {
		slug = "applicant"
	}
	return fmt.Sprintf("sanction_letter_%s_%s_%s.pdf", slug, at.Format("20060102T150405"), uuid.NewString()[:8])
}

func rupees(v int64) string {
	return strings.Replace(underwriting.FormatRupees(v), "₹", "Rs. ", 1)
}
