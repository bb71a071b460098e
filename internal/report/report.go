// Package report renders member lists as a grouped, paginated PDF.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"memberhub/internal/members"
)

var ErrGenerationFailed = errors.New("report generation failed")

const Unassigned = "Unassigned"

// Group is the members of one collector in input order.
type Group struct {
	Label   string
	Members []members.Member
}

// GroupByCollector partitions ms by collector name. Groups appear in the
// order their collector is first seen; members without one are
// Unassigned.
func GroupByCollector(ms []members.Member) []Group {
	var groups []Group
	index := map[string]int{}
	for _, m := range ms {
		label := strings.TrimSpace(members.Str(m.Collector))
		if label == "" {
			label = Unassigned
		}
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, Group{Label: label})
		}
		groups[i].Members = append(groups[i].Members, m)
	}
	return groups
}

type Section struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type Summary struct {
	Sections []Section `json:"sections"`
	Rows     int       `json:"rows"`
	Pages    int       `json:"pages"`
}

// Filename is the download name of a report generated at now.
func Filename(now time.Time) string {
	return "members-report-" + now.Format("2006-01-02") + ".pdf"
}

type column struct {
	header string
	width  float64
}

var columns = []column{
	{"#", 22},
	{"Name", 50},
	{"Contact", 60},
	{"Address", 85},
	{"Status", 25},
	{"Type", 25},
}

const (
	margin     = 15.0
	lineHeight = 4.5
	cellPad    = 1.5
	footerRoom = 15.0
	headerRow  = 7.0
)

// Generator renders reports. The zero value is ready to use.
type Generator struct {
	// Font is a core PDF font family; empty means Helvetica.
	Font string
	Now  func() time.Time
}

// Generate renders ms under title and writes the document to w. Nothing
// is written unless the whole document rendered.
func (g *Generator) Generate(w io.Writer, title string, ms []members.Member) (summary Summary, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			summary, err = Summary{}, fmt.Errorf("%w: %v", ErrGenerationFailed, rec)
		}
	}()

	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}
	font := g.Font
	if font == "" {
		font = "Helvetica"
	}

	r := &renderer{pdf: fpdf.New("L", "mm", "A4", ""), font: font}
	r.tr = r.pdf.UnicodeTranslatorFromDescriptor("")
	r.setup()
	if err := r.pdf.Error(); err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	summary, err = r.render(title, now, GroupByCollector(ms))
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	var buf bytes.Buffer
	if err := r.pdf.Output(&buf); err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	summary.Pages = r.pdf.PageCount()
	if _, err := w.Write(buf.Bytes()); err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return summary, nil
}

type renderer struct {
	pdf     *fpdf.Fpdf
	tr      func(string) string
	font    string
	inTable bool
	shaded  bool
}

func (r *renderer) setup() {
	p := r.pdf
	p.SetMargins(margin, margin, margin)
	p.SetAutoPageBreak(false, footerRoom)
	p.SetFooterFunc(func() {
		_, h := p.GetPageSize()
		p.SetFont(r.font, "", 10)
		p.SetTextColor(0, 0, 0)
		w, _ := p.GetPageSize()
		p.SetXY(w-margin-30, h-10)
		p.CellFormat(30, 5, fmt.Sprintf("Page %d", p.PageNo()), "", 0, "R", false, 0, "")
	})
	p.SetHeaderFuncMode(func() {
		p.SetXY(margin, margin)
		if r.inTable {
			r.tableHeader()
		}
	}, false)
}

// render lays out the document. It stops at the first fpdf error, since
// later fpdf calls are not safe on a failed document.
func (r *renderer) render(title string, now time.Time, groups []Group) (Summary, error) {
	p := r.pdf
	p.AddPage()
	p.SetFont(r.font, "B", 18)
	p.CellFormat(0, 9, r.tr(title), "", 1, "L", false, 0, "")
	p.SetFont(r.font, "", 11)
	p.CellFormat(0, 6, "Generated: "+members.FormatDate(&now), "", 1, "L", false, 0, "")
	total := 0
	for _, g := range groups {
		total += len(g.Members)
	}
	p.CellFormat(0, 6, fmt.Sprintf("Total Members: %d", total), "", 1, "L", false, 0, "")
	p.Ln(4)
	if p.Err() {
		return Summary{}, p.Error()
	}

	s := Summary{Sections: []Section{}}
	for i, g := range groups {
		if i > 0 {
			p.AddPage()
		}
		p.SetFont(r.font, "B", 14)
		p.CellFormat(0, 7, r.tr("Collector: "+g.Label), "", 1, "L", false, 0, "")
		p.SetFont(r.font, "", 11)
		p.CellFormat(0, 6, fmt.Sprintf("Members: %d", len(g.Members)), "", 1, "L", false, 0, "")
		p.Ln(2)

		r.inTable = true
		r.shaded = false
		r.tableHeader()
		for _, m := range g.Members {
			if p.Err() {
				return Summary{}, p.Error()
			}
			r.row(cells(m))
			s.Rows++
		}
		r.inTable = false
		s.Sections = append(s.Sections, Section{Label: g.Label, Count: len(g.Members)})
	}
	return s, p.Error()
}

func (r *renderer) tableHeader() {
	p := r.pdf
	p.SetFont(r.font, "B", 9)
	p.SetFillColor(137, 137, 222)
	p.SetTextColor(255, 255, 255)
	for _, c := range columns {
		p.CellFormat(c.width, 7, c.header, "1", 0, "L", true, 0, "")
	}
	p.Ln(-1)
	p.SetTextColor(0, 0, 0)
	p.SetFont(r.font, "", 8)
}

// maxRowLines is how many text lines fit in a row on an otherwise empty
// table page.
func (r *renderer) maxRowLines() int {
	_, pageH := r.pdf.GetPageSize()
	avail := pageH - footerRoom - margin - headerRow - 2*cellPad
	return max(int(avail/lineHeight), 1)
}

// fitLines cuts lines to at most n, marking the cut with "...".
func fitLines(lines [][]byte, n int) [][]byte {
	if len(lines) <= n {
		return lines
	}
	out := append([][]byte{}, lines[:n-1]...)
	return append(out, []byte("..."))
}

// row draws one table row, moving to a new page first when it would not
// fit above the footer. Cells taller than a page are cut.
func (r *renderer) row(values []string) {
	p := r.pdf
	p.SetFont(r.font, "", 8)
	if p.Err() {
		return
	}
	limit := r.maxRowLines()
	lines := make([][][]byte, len(values))
	height := 0.0
	for i, v := range values {
		lines[i] = fitLines(p.SplitLines([]byte(r.tr(v)), columns[i].width), limit)
		if n := float64(max(len(lines[i]), 1))*lineHeight + 2*cellPad; n > height {
			height = n
		}
	}
	_, pageH := p.GetPageSize()
	if p.GetY()+height > pageH-footerRoom {
		p.AddPage()
		r.shaded = false
	}

	x, y := p.GetX(), p.GetY()
	if r.shaded {
		p.SetFillColor(245, 245, 245)
	} else {
		p.SetFillColor(255, 255, 255)
	}
	for i, c := range columns {
		p.Rect(x, y, c.width, height, "FD")
		ty := y + cellPad
		for _, l := range lines[i] {
			p.SetXY(x, ty)
			p.CellFormat(c.width, lineHeight, string(l), "", 0, "L", false, 0, "")
			ty += lineHeight
		}
		x += c.width
	}
	p.SetXY(margin, y+height)
	r.shaded = !r.shaded
}

// cells formats m in column order. Missing values are "N/A".
func cells(m members.Member) []string {
	contact := joinPresent("\n", m.Email, m.Phone)
	address := joinPresent(", ", m.Address, m.Town, m.Postcode)
	return []string{
		orNA(m.MemberNumber),
		orNA(members.Str(m.FullName)),
		orNA(contact),
		orNA(address),
		orNA(members.Str(m.Status)),
		orNA(members.Str(m.MembershipType)),
	}
}

func joinPresent(sep string, parts ...*string) string {
	var out []string
	for _, p := range parts {
		if v := strings.TrimSpace(members.Str(p)); v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, sep)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
