package spreadsheet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/pkg/errors"
)

// decodeXLS reads legacy BIFF workbooks. The decoder panics on some malformed files.
func decodeXLS(data []byte) (table [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			table, err = nil, fmt.Errorf("corrupt workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("workbook has no sheets")
	}

	table = make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			table = append(table, []string{})
			continue
		}
		values := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			values = append(values, row.Col(c))
		}
		table = append(table, trimTrailingEmpty(values))
	}
	return table, nil
}

// trimTrailingEmpty drops blank cells at the end of a row, the way excelize reports rows.
func trimTrailingEmpty(values []string) []string {
	n := len(values)
	for n > 0 && strings.TrimSpace(values[n-1]) == "" {
		n--
	}
	return values[:n]
}
