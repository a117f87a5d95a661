package cli

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/raphaelgruber/linkograph/internal/embedding"
	"github.com/raphaelgruber/linkograph/internal/metrics"
	"github.com/raphaelgruber/linkograph/internal/models"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// episodesTable lists a linked collection, one row per episode.
func episodesTable(collection models.LinkedCollection) string {
	rows := make([][]string, 0, len(collection))
	for _, ep := range collection {
		rows = append(rows, []string{
			ep.ID,
			strconv.Itoa(len(ep.Moves)),
			strconv.Itoa(ep.Links.Pairs()),
		})
	}
	return renderTable(
		[]string{"Episode", "Moves", "Pairs"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	)
}

// movesTable lists the moves of an episode with their text.
func movesTable(ep models.LinkedEpisode) string {
	rows := make([][]string, 0, len(ep.Moves))
	for i, m := range ep.Moves {
		t, err := m.Text()
		if err != nil {
			t = "(" + err.Error() + ")"
		}
		rows = append(rows, []string{strconv.Itoa(i), truncate(t, 72)})
	}
	return renderTable([]string{"#", "Text"}, rows, []columnAlignment{alignRight, alignLeft})
}

// scoresTable renders a link table as a lower-triangular matrix.
func scoresTable(links models.LinkTable) string {
	n := links.Len()
	if n == 0 {
		return ""
	}

	headers := make([]string, n+1)
	aligns := make([]columnAlignment, n+1)
	headers[0] = "#"
	for j := range n {
		headers[j+1] = strconv.Itoa(j)
		aligns[j+1] = alignRight
	}
	aligns[0] = alignRight

	rows := make([][]string, n)
	for i, row := range links {
		r := make([]string, n+1)
		r[0] = strconv.Itoa(i)
		for j, s := range row {
			r[j+1] = fmt.Sprintf("%.3f", s)
		}
		rows[i] = r
	}
	return renderTable(headers, rows, aligns)
}

// statsTable summarizes the run's timings, plus cache counters when e caches.
func statsTable(snap metrics.Snapshot, e embedding.Embedder) string {
	ops := snap.Operations()
	rows := make([][]string, 0, len(ops)+2)
	for _, op := range ops {
		rows = append(rows, []string{
			op.Op,
			strconv.FormatInt(op.Count, 10),
			strconv.FormatInt(op.Items, 10),
			strconv.FormatInt(op.TotalTimeMs, 10),
			fmt.Sprintf("%.2f", op.AvgTimeMs),
			strconv.FormatInt(op.MaxTimeMs, 10),
			fmt.Sprintf("%.0f", op.ItemsPerSec),
		})
	}
	if c, ok := e.(*embedding.CachedEmbedder); ok {
		rows = append(rows,
			[]string{"cache hits", "", strconv.FormatInt(c.Hits(), 10)},
			[]string{"cache misses", "", strconv.FormatInt(c.Misses(), 10)},
		)
	}
	return renderTable(
		[]string{"Operation", "Calls", "Items", "Total ms", "Avg ms", "Max ms", "Items/s"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
