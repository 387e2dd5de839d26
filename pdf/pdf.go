// Package pdf renders the documents sent out for signature.
package pdf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/acrylic/rights/models"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	ContractName = "Master Recording and Compositions Synchronization Representation Agreement"

	linesPerPage = 42
	marginLeft   = 56
	marginTop    = 64
	lineHeight   = 17
)

type Renderer struct {
	conf *model.Configuration
	now  func() time.Time
}

func NewRenderer() *Renderer {
	return &Renderer{
		conf: model.NewDefaultConfiguration(),
		now:  time.Now,
	}
}

// RenderSplitSheet produces the split sheet PDF. The sheet must have its
// splits (and track, when linked) loaded.
func (r *Renderer) RenderSplitSheet(sheet *models.SplitSheet) ([]byte, error) {
	return r.render(splitSheetLines(sheet, r.now()))
}

func (r *Renderer) RenderContract(artist *models.Artist, user *models.User) ([]byte, error) {
	return r.render(contractLines(artist, user, r.now()))
}

// render refuses text outside WinAnsi, which the core fonts would drop
// silently.
func (r *Renderer) render(lines []line) ([]byte, error) {
	for _, ln := range lines {
		if !models.Printable(ln.text) {
			return nil, &models.ValidationError{Field: "document", Message: fmt.Sprintf("%q cannot be printed with the document font", ln.text)}
		}
	}
	desc, err := json.Marshal(buildLayout(lines))
	if err != nil {
		return nil, fmt.Errorf("encode pdf layout: %w", err)
	}
	var buf bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(desc), &buf, r.conf); err != nil {
		return nil, fmt.Errorf("create pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type line struct {
	text string
	size int
	bold bool
}

func heading(s string) line { return line{text: s, size: 16, bold: true} }
func section(s string) line { return line{text: s, size: 12, bold: true} }
func body(s string) line    { return line{text: s, size: 10} }
func blank() line           { return line{} }

type font struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type textBox struct {
	Value string `json:"value"`
	Pos   [2]int `json:"pos"`
	Font  font   `json:"font"`
}

type content struct {
	Text []textBox `json:"text,omitempty"`
}

type page struct {
	Content content `json:"content"`
}

type layout struct {
	Paper  string          `json:"paper"`
	Origin string          `json:"origin"`
	Pages  map[string]page `json:"pages"`
}

// buildLayout lays lines out top to bottom, starting a new page every
// linesPerPage lines.
func buildLayout(lines []line) layout {
	l := layout{Paper: "A4P", Origin: "UpperLeft", Pages: map[string]page{}}
	for i, ln := range lines {
		n := strconv.Itoa(i/linesPerPage + 1)
		p := l.Pages[n]
		if ln.text == "" {
			l.Pages[n] = p
			continue
		}
		name := "Helvetica"
		if ln.bold {
			name = "Helvetica-Bold"
		}
		p.Content.Text = append(p.Content.Text, textBox{
			Value: ln.text,
			Pos:   [2]int{marginLeft, marginTop + (i%linesPerPage)*lineHeight},
			Font:  font{Name: name, Size: ln.size},
		})
		l.Pages[n] = p
	}
	if len(l.Pages) == 0 {
		l.Pages["1"] = page{}
	}
	return l
}

func splitSheetLines(s *models.SplitSheet, now time.Time) []line {
	lines := []line{
		heading("Split Sheet"),
		blank(),
		body("Track: " + s.DisplayTrackName()),
		body("ISRC: " + s.EffectiveISRC()),
		body("Date: " + now.UTC().Format("January 2, 2006")),
		blank(),
		section("Master Recording"),
	}
	if len(s.MasterSplits) == 0 {
		lines = append(lines, body("No master splits."))
	}
	for _, m := range s.MasterSplits {
		lines = append(lines, body(fmt.Sprintf("%s <%s>  %s  %s%%", m.Name, m.Email, m.Role, m.Percent.StringFixed(2))))
	}

	lines = append(lines, blank(), section("Publishing"))
	if len(s.PublishingSplits) == 0 {
		lines = append(lines, body("No publishing splits."))
	}
	for _, p := range s.PublishingSplits {
		text := fmt.Sprintf("%s <%s>  %s  %s%%", p.Name, p.Email, p.Role, p.Percent.StringFixed(2))
		if p.PROName != "" {
			text += "  PRO: " + p.PROName
		}
		if p.IPI != nil {
			text += "  IPI: " + strconv.FormatUint(*p.IPI, 10)
		}
		lines = append(lines, body(text))
	}

	lines = append(lines,
		blank(),
		body("Each party confirms the ownership shares listed above for this recording"),
		body("and the underlying composition."),
	)
	return lines
}

func contractLines(a *models.Artist, u *models.User, now time.Time) []line {
	party := a.Name
	if u != nil && u.FullName() != "" {
		party = fmt.Sprintf("%s (%s)", u.FullName(), a.Name)
	}
	return []line{
		heading(ContractName),
		blank(),
		body("Date: " + now.UTC().Format("January 2, 2006")),
		body("Artist: " + party),
		blank(),
		section("1. Representation"),
		body("Artist appoints Acrylic as non-exclusive representative for the synchronization"),
		body("licensing of master recordings and compositions owned or controlled by Artist."),
		blank(),
		section("2. Revenue"),
		body("Fees collected under licenses granted pursuant to this agreement are shared"),
		body("according to the split sheets on file for each recording."),
		blank(),
		section("3. Term"),
		body("This agreement remains in effect until terminated by either party in writing."),
	}
}
