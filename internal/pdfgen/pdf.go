// Package pdfgen renders test certificates as A4 PDF documents. Every
// renderer takes the fully loaded record (rooms and readings preloaded)
// and returns the document bytes. Certificates that are not yet
// approved carry a DRAFT watermark on every page.
package pdfgen

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/facility-logbook/backend/internal/models"
)

const (
	marginMM   = 12.0
	contentW   = 186.0
	lineH      = 6.0
	tableLineH = 5.5
)

type doc struct {
	pdf *gofpdf.Fpdf
}

// newDoc builds the page scaffold: margins, footer with page numbers,
// and the DRAFT watermark header when the certificate is unapproved.
func newDoc(title string, draft bool) *doc {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AliasNbPages("")

	if draft {
		pdf.SetHeaderFunc(func() {
			pdf.SetFont("Arial", "B", 72)
			pdf.SetTextColor(225, 225, 225)
			pdf.TransformBegin()
			pdf.TransformRotate(45, 105, 160)
			pdf.Text(55, 170, "DRAFT")
			pdf.TransformEnd()
			pdf.SetTextColor(0, 0, 0)
			pdf.SetXY(marginMM, marginMM)
		})
	}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-14)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	pdf.AddPage()
	return &doc{pdf: pdf}
}

func (d *doc) title(testName string) {
	d.pdf.SetFont("Arial", "B", 15)
	d.pdf.CellFormat(contentW, 9, testName, "", 1, "C", false, 0, "")
	d.pdf.SetFont("Arial", "", 9)
	d.pdf.CellFormat(contentW, 5, "Facility Operations Logbook", "", 1, "C", false, 0, "")
	d.pdf.Ln(3)
}

// headerBlock prints the certificate identification grid.
func (d *doc) headerBlock(h models.CertificateHeader) {
	half := contentW / 2
	d.pdf.SetFont("Arial", "", 10)
	d.kvCell(half, "Certificate No", h.CertificateNo)
	d.kvCell(half, "Date", fmtDate(h.Date))
	d.pdf.Ln(lineH)
	d.kvCell(half, "Client", h.ClientName)
	d.kvCell(half, "AHU No", h.AHUNumber)
	d.pdf.Ln(lineH)
	if h.ClientAddress != "" {
		d.kvCell(contentW, "Address", h.ClientAddress)
		d.pdf.Ln(lineH)
	}
	d.pdf.Ln(2)
}

// instrumentBlock prints the instrument register snapshot.
func (d *doc) instrumentBlock(in models.InstrumentDetails) {
	if in.InstrumentName == "" && in.InstrumentSerialNumber == "" {
		return
	}
	d.sectionTitle("Instrument Details")
	third := contentW / 3
	d.pdf.SetFont("Arial", "", 9)
	d.kvCell(third, "Instrument", in.InstrumentName)
	d.kvCell(third, "Make", in.InstrumentMake)
	d.kvCell(third, "Model", in.InstrumentModel)
	d.pdf.Ln(lineH)
	d.kvCell(third, "Serial No", in.InstrumentSerialNumber)
	d.kvCell(third, "ID No", in.InstrumentIDNumber)
	d.kvCell(third, "Flow Rate", in.InstrumentFlowRate)
	d.pdf.Ln(lineH)
	d.kvCell(third, "Calibrated On", fmtDatePtr(in.InstrumentCalibrationDate))
	d.kvCell(third, "Calibration Due", fmtDatePtr(in.InstrumentCalibrationDueDate))
	d.kvCell(third, "Sampling Time", in.InstrumentSamplingTime)
	d.pdf.Ln(lineH)
	d.pdf.Ln(2)
}

func (d *doc) kvCell(w float64, label, value string) {
	d.pdf.SetFont("Arial", "B", 9)
	d.pdf.CellFormat(w*0.38, lineH, label+":", "", 0, "L", false, 0, "")
	d.pdf.SetFont("Arial", "", 9)
	d.pdf.CellFormat(w*0.62, lineH, value, "", 0, "L", false, 0, "")
}

func (d *doc) sectionTitle(s string) {
	d.pdf.SetFont("Arial", "B", 11)
	d.pdf.SetFillColor(235, 235, 235)
	d.pdf.CellFormat(contentW, 7, " "+s, "1", 1, "L", true, 0, "")
	d.pdf.Ln(1)
}

type col struct {
	w     float64
	title string
}

func (d *doc) tableHeader(cols []col) {
	d.pdf.SetFont("Arial", "B", 8)
	d.pdf.SetFillColor(245, 245, 245)
	for _, c := range cols {
		d.pdf.CellFormat(c.w, tableLineH, c.title, "1", 0, "C", true, 0, "")
	}
	d.pdf.Ln(tableLineH)
	d.pdf.SetFont("Arial", "", 8)
}

func (d *doc) tableRow(cols []col, values []string) {
	for i, c := range cols {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		d.pdf.CellFormat(c.w, tableLineH, v, "1", 0, "C", false, 0, "")
	}
	d.pdf.Ln(tableLineH)
}

// inference prints the analyst's conclusion paragraph.
func (d *doc) inference(text string) {
	if text == "" {
		return
	}
	d.pdf.Ln(2)
	d.sectionTitle("Inference")
	d.pdf.SetFont("Arial", "", 9)
	d.pdf.MultiCell(contentW, 5, text, "", "L", false)
	d.pdf.Ln(1)
}

// signatureBlock closes the certificate with the prepared/approved
// identities. Unapproved certificates state the pending status.
func (d *doc) signatureBlock(preparedBy string, w models.Workflow) {
	d.pdf.Ln(6)
	half := contentW / 2
	d.pdf.SetFont("Arial", "B", 9)
	d.pdf.CellFormat(half, lineH, "Prepared By", "", 0, "L", false, 0, "")
	d.pdf.CellFormat(half, lineH, "Approved By", "", 1, "L", false, 0, "")
	d.pdf.SetFont("Arial", "", 9)
	if preparedBy == "" {
		preparedBy = w.OperatorName
	}
	d.pdf.CellFormat(half, lineH, preparedBy, "", 0, "L", false, 0, "")
	if w.Status == models.StatusApproved && w.ApprovedAt != nil {
		d.pdf.CellFormat(half, lineH, fmt.Sprintf("Approved on %s", fmtDate(*w.ApprovedAt)), "", 1, "L", false, 0, "")
	} else {
		d.pdf.CellFormat(half, lineH, "Pending approval", "", 1, "L", false, 0, "")
	}
	if w.Remarks != "" {
		d.pdf.SetFont("Arial", "I", 8)
		d.pdf.MultiCell(contentW, 5, "Remarks: "+w.Remarks, "", "L", false)
	}
}

func (d *doc) output() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02 Jan 2006")
}

func fmtDatePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return fmtDate(*t)
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func fmtFloatPtr(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmtFloat(*v)
}

func fmtInt(v int) string {
	return strconv.Itoa(v)
}
