package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/bookish/internal/doctree"
)

// CSVParser handles CSV files. Rows become tables of at most batchSize data
// rows, each repeating the header row in bold.
type CSVParser struct{}

const batchSize = 20

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := doctree.New(titleOf(filename))
	if len(records) == 0 {
		tree.Finish()
		return tree, nil
	}

	// First row is headers.
	headers := records[0]
	dataRows := records[1:]

	for i := 0; i < len(dataRows) || i == 0; i += batchSize {
		end := min(i+batchSize, len(dataRows))
		table := tree.Add(&doctree.Node{Kind: doctree.KindTable})

		cells := make([]doctree.NodeID, 0, len(headers))
		for _, h := range headers {
			bold := tree.Add(&doctree.Node{Kind: doctree.KindFormatted, Delimiter: "*"})
			tree.Append(bold, tree.NewText(oneLine(h), -1))
			cells = append(cells, tree.NewContent(bold))
		}
		tree.AppendRow(table, cells)

		for _, row := range dataRows[i:end] {
			cells := make([]doctree.NodeID, 0, len(row))
			for _, cell := range row {
				cells = append(cells, tree.NewContent(tree.NewText(oneLine(cell), -1)))
			}
			tree.AppendRow(table, cells)
		}

		if len(dataRows) > 0 {
			caption := tree.NewContent(tree.NewText(fmt.Sprintf("Rows %d-%d", i+2, end+1), -1)) // 1-indexed, skip header
			tree.SetCaption(table, caption)
		}
		tree.Append(tree.Root(), table)
		if len(dataRows) == 0 {
			break
		}
	}

	tree.Finish()
	return tree, nil
}
