package commands

import (
	"math"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"token-alert-bot/internal/types"
	"token-alert-bot/lib/helpers"
)

// parseTarget accepts "150", "$150" and "1,500.25". Anything that is not a finite
// positive price is ErrInvalidTarget.
func parseTarget(s string) (float64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrap(types.ErrInvalidTarget, err.Error())
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, types.ErrInvalidTarget
	}
	return v, nil
}

// renderTable draws rows as a borderless text table inside a <pre> block
func renderTable(header []string, rows [][]string) string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetColumnSeparator(" ")
	table.SetCenterSeparator("")
	table.SetHeaderLine(false)
	table.AppendBulk(rows)
	table.Render()

	return "<pre>" + helpers.EscapeHTML(strings.TrimRight(b.String(), "\n")) + "</pre>"
}
