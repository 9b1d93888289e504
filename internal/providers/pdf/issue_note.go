package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// IssueNoteData is the handoff slip printed when material leaves the
// warehouse for the site.
type IssueNoteData struct {
	WorkOrderNumber string
	MaterialCode    string
	Description     string
	Quantity        string
	Unit            string
	ReleasedBy      string
	ReceivedBySite  string
	IssueDate       string
	Warehouse       string
}

func (p *PDFProvider) GenerateIssueNote(ctx context.Context, data IssueNoteData) (io.Reader, error) {
	cfg := config.NewBuilder().Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Site Issue Note", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(28,
		col.New(6).Add(
			text.New("Work order: "+data.WorkOrderNumber, props.Text{Top: 0}),
			text.New("Material: "+data.MaterialCode, props.Text{Top: 4}),
			text.New(data.Description, props.Text{Top: 8}),
			text.New("Quantity: "+data.Quantity+" "+data.Unit, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("Date: "+data.IssueDate, props.Text{Top: 0, Align: align.Right}),
			text.New("Warehouse: "+data.Warehouse, props.Text{Top: 4, Align: align.Right}),
		),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Released by", props.Text{Style: fontstyle.Bold}),
			text.New(data.ReleasedBy, props.Text{Top: 6}),
		),
		col.New(6).Add(
			text.New("Received by site", props.Text{Style: fontstyle.Bold}),
			text.New(data.ReceivedBySite, props.Text{Top: 6}),
		),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
