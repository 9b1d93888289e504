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

// UsageSummaryData is one work order's material consumption rollup.
type UsageSummaryData struct {
	WorkOrderNumber string
	WorkOrderTitle  string
	ClientName      string
	GeneratedAt     string

	Lines []UsageSummaryLine
}

type UsageSummaryLine struct {
	MaterialCode   string
	Description    string
	Unit           string
	Total          string
	Used           string
	Remaining      string
	UsedPercentage string
	Status         string
}

func (p *PDFProvider) GenerateUsageSummary(ctx context.Context, data UsageSummaryData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Material Usage Summary", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(22,
		col.New(8).Add(
			text.New("Work order: "+data.WorkOrderNumber, props.Text{Top: 0}),
			text.New(data.WorkOrderTitle, props.Text{Top: 4}),
			text.New("Client: "+data.ClientName, props.Text{Top: 8}),
		),
		col.New(4).Add(
			text.New("Generated: "+data.GeneratedAt, props.Text{Top: 0, Align: align.Right}),
		),
	)

	m.AddRow(8,
		text.NewCol(2, "Code", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Material", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "Unit", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "Total", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(1, "Used", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Remaining", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(1, "%", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(1, "Status", props.Text{Style: fontstyle.Bold, Size: 9}),
	)

	for _, line := range data.Lines {
		m.AddRow(8,
			text.NewCol(2, line.MaterialCode, props.Text{Size: 9}),
			text.NewCol(3, line.Description, props.Text{Size: 9}),
			text.NewCol(1, line.Unit, props.Text{Size: 9}),
			text.NewCol(1, line.Total, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(1, line.Used, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, line.Remaining, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(1, line.UsedPercentage, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(1, line.Status, props.Text{Size: 9}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
