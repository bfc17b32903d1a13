package pdfgen

import (
	"fmt"

	"github.com/facility-logbook/backend/internal/models"
)

// RenderAirVelocity renders the air velocity and air change test
// certificate.
func RenderAirVelocity(t *models.AirVelocityTest) ([]byte, error) {
	d := newDoc("Air Velocity Test "+t.CertificateNo, t.Status != models.StatusApproved)
	d.title("AIR VELOCITY TEST CERTIFICATE")
	d.headerBlock(t.CertificateHeader)
	if t.TestReference != "" {
		d.kvCell(contentW, "Test Reference", t.TestReference)
		d.pdf.Ln(lineH + 2)
	}
	d.instrumentBlock(t.InstrumentDetails)

	cols := []col{
		{28, "Filter ID"}, {18, "Area (m2)"},
		{16, "R1"}, {16, "R2"}, {16, "R3"}, {16, "R4"}, {16, "R5"},
		{28, "Avg (m/s)"}, {28, "Flow (CFM)"},
	}
	for _, room := range t.Rooms {
		name := room.RoomName
		if room.RoomNumber != "" {
			name = fmt.Sprintf("%s (%s)", room.RoomName, room.RoomNumber)
		}
		d.sectionTitle("Room: " + name)
		d.tableHeader(cols)
		for _, f := range room.Filters {
			d.tableRow(cols, []string{
				f.FilterID, fmtFloat(f.FilterArea),
				fmtFloat(f.Reading1), fmtFloat(f.Reading2), fmtFloat(f.Reading3),
				fmtFloat(f.Reading4), fmtFloat(f.Reading5),
				fmtFloat(f.AvgVelocity), fmtFloat(f.AirFlowCFM),
			})
		}
		d.pdf.Ln(1)
		d.pdf.SetFont("Arial", "B", 9)
		summary := fmt.Sprintf("Total air flow: %s CFM    Room volume: %s CFT    ACH: %s",
			fmtFloat(room.TotalAirFlowCFM), fmtFloat(room.RoomVolumeCFT), fmtFloat(room.ACH))
		if room.DesignACPH != nil {
			summary += fmt.Sprintf("    Design: %s ACPH", fmtFloat(*room.DesignACPH))
		}
		d.pdf.CellFormat(contentW, lineH, summary, "", 1, "L", false, 0, "")
		d.pdf.Ln(2)
	}

	d.inference(t.Inference)
	d.signatureBlock(t.PreparedBy, t.Workflow)
	return d.output()
}

// RenderFilterIntegrity renders the HEPA filter integrity (DOP/PAO)
// test certificate.
func RenderFilterIntegrity(t *models.FilterIntegrityTest) ([]byte, error) {
	d := newDoc("Filter Integrity Test "+t.CertificateNo, t.Status != models.StatusApproved)
	d.title("FILTER INTEGRITY TEST CERTIFICATE")
	d.headerBlock(t.CertificateHeader)
	if t.TestReference != "" {
		d.kvCell(contentW, "Test Reference", t.TestReference)
		d.pdf.Ln(lineH + 2)
	}
	d.instrumentBlock(t.InstrumentDetails)

	cols := []col{
		{26, "Filter ID"}, {30, "Upstream"}, {30, "Aerosol"},
		{30, "Downstream"}, {26, "Leakage (%)"}, {24, "Limit (%)"}, {20, "Result"},
	}
	for _, room := range t.Rooms {
		name := room.RoomName
		if room.RoomNumber != "" {
			name = fmt.Sprintf("%s (%s)", room.RoomName, room.RoomNumber)
		}
		d.sectionTitle("Room: " + name)
		d.tableHeader(cols)
		for _, r := range room.Readings {
			d.tableRow(cols, []string{
				r.FilterID,
				fmtFloat(r.UpstreamConcentration),
				fmtFloat(r.AerosolConcentration),
				fmtFloat(r.DownstreamConcentration),
				fmtFloat(r.DownstreamLeakage),
				fmtFloat(r.AcceptableLimit),
				string(r.TestStatus),
			})
		}
		d.pdf.Ln(2)
	}

	d.inference(t.Inference)
	d.signatureBlock(t.PreparedBy, t.Workflow)
	return d.output()
}

// RenderRecovery renders the cleanroom recovery test certificate.
func RenderRecovery(t *models.RecoveryTest) ([]byte, error) {
	d := newDoc("Recovery Test "+t.CertificateNo, t.Status != models.StatusApproved)
	d.title("RECOVERY TEST CERTIFICATE")
	d.headerBlock(t.CertificateHeader)
	d.instrumentBlock(t.InstrumentDetails)

	d.sectionTitle("Test Summary")
	half := contentW / 2
	d.kvCell(half, "Area Classification", t.AreaClassification)
	d.kvCell(half, "Room", fmt.Sprintf("%s %s", t.RoomName, t.RoomNumber))
	d.pdf.Ln(lineH)
	d.kvCell(half, "Test Condition", t.TestCondition)
	d.kvCell(half, "Recovery Time (min)", fmtFloat(t.RecoveryTime))
	d.pdf.Ln(lineH)
	d.kvCell(half, "Result", string(t.TestStatus))
	d.pdf.Ln(lineH + 2)

	cols := []col{
		{36, "Time"}, {30, "AHU Status"},
		{60, "Count >= 0.5 um"}, {60, "Count >= 5.0 um"},
	}
	d.sectionTitle("Particle Counts")
	d.tableHeader(cols)
	for _, dp := range t.DataPoints {
		d.tableRow(cols, []string{
			dp.Time, string(dp.AHUStatus),
			fmtInt(dp.ParticleCount05), fmtInt(dp.ParticleCount5),
		})
	}

	if t.AuditStatement != "" {
		d.pdf.Ln(2)
		d.sectionTitle("Audit Statement")
		d.pdf.SetFont("Arial", "", 9)
		d.pdf.MultiCell(contentW, 5, t.AuditStatement, "", "L", false)
	}

	d.signatureBlock(t.PreparedBy, t.Workflow)
	return d.output()
}

// RenderDifferentialPressure renders the room pressure cascade test
// certificate.
func RenderDifferentialPressure(t *models.DifferentialPressureTest) ([]byte, error) {
	d := newDoc("Differential Pressure Test "+t.CertificateNo, t.Status != models.StatusApproved)
	d.title("DIFFERENTIAL PRESSURE TEST CERTIFICATE")
	d.headerBlock(t.CertificateHeader)
	d.instrumentBlock(t.InstrumentDetails)

	cols := []col{
		{12, "#"}, {48, "Positive Side"}, {48, "Negative Side"},
		{26, "DP (Pa)"}, {26, "Limit (Pa)"}, {26, "Result"},
	}
	d.sectionTitle("Pressure Readings")
	d.tableHeader(cols)
	for i, r := range t.Readings {
		d.tableRow(cols, []string{
			fmtInt(i + 1), r.RoomPositive, r.RoomNegative,
			fmtFloat(r.DPReading), fmtFloat(r.Limit), string(r.TestStatus),
		})
	}

	d.signatureBlock(t.PreparedBy, t.Workflow)
	return d.output()
}

// RenderNVPC renders the non-viable particle count test certificate.
func RenderNVPC(t *models.NVPCTest) ([]byte, error) {
	d := newDoc("NVPC Test "+t.CertificateNo, t.Status != models.StatusApproved)
	d.title("NON-VIABLE PARTICLE COUNT TEST CERTIFICATE")
	d.headerBlock(t.CertificateHeader)
	if t.AreaClassification != "" || t.AreaName != "" {
		half := contentW / 2
		d.kvCell(half, "Area", t.AreaName)
		d.kvCell(half, "Classification", t.AreaClassification)
		d.pdf.Ln(lineH + 2)
	}
	d.instrumentBlock(t.InstrumentDetails)

	cols := []col{
		{18, "Point"}, {42, "Location"},
		{26, "Avg 0.5um"}, {26, "Limit 0.5um"},
		{26, "Avg 5um"}, {26, "Limit 5um"}, {22, "Result"},
	}
	for _, room := range t.Rooms {
		name := room.RoomName
		if room.RoomNumber != "" {
			name = fmt.Sprintf("%s (%s)", room.RoomName, room.RoomNumber)
		}
		header := "Room: " + name
		if room.ISOClass != nil {
			header += fmt.Sprintf("  -  ISO Class %d", *room.ISOClass)
		}
		d.sectionTitle(header)
		d.tableHeader(cols)
		for _, p := range room.SamplingPoints {
			d.tableRow(cols, []string{
				p.PointID, p.Location,
				fmtFloat(p.Average05), fmtFloat(p.Limit05),
				fmtFloat(p.Average5), fmtFloat(p.Limit5),
				string(p.TestStatus),
			})
		}
		d.pdf.Ln(1)
		d.pdf.SetFont("Arial", "B", 9)
		d.pdf.CellFormat(contentW, lineH, fmt.Sprintf(
			"Room mean 0.5um: %s    Room mean 5um: %s    Room result: %s",
			fmtFloatPtr(room.Mean05), fmtFloatPtr(room.Mean5), room.RoomStatus),
			"", 1, "L", false, 0, "")
		d.pdf.Ln(2)
	}

	d.inference(t.Inference)
	d.signatureBlock(t.PreparedBy, t.Workflow)
	return d.output()
}
