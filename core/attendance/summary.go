package attendance

import (
	"math"
	"sort"
)

type (
	MarkerCount struct {
		MarkedBy string `json:"marked_by"`
		Count    int    `json:"count"`
	}

	Summary struct {
		Total              int           `json:"total"`
		Present            int           `json:"present"`
		Absent             int           `json:"absent"`
		Percentage         float64       `json:"percentage"` // one decimal
		PresentSpreadsheet int           `json:"present_spreadsheet"`
		PresentManual      int           `json:"present_manual"`
		AbsentSpreadsheet  int           `json:"absent_spreadsheet"`
		AbsentManual       int           `json:"absent_manual"`
		ByMarker           []MarkerCount `json:"by_marker"` // present entries only
	}
)

func Summarize(entries []Entry) Summary {
	sum := Summary{Total: len(entries), ByMarker: []MarkerCount{}}
	markers := make(map[string]int)

	for _, e := range entries {
		manual := e.Origin == OriginManual
		if e.Present {
			sum.Present++
			if manual {
				sum.PresentManual++
			} else {
				sum.PresentSpreadsheet++
			}
			if e.MarkedBy != "" {
				markers[e.MarkedBy]++
			}
			continue
		}
		sum.Absent++
		if manual {
			sum.AbsentManual++
		} else {
			sum.AbsentSpreadsheet++
		}
	}

	if sum.Total > 0 {
		sum.Percentage = math.Round(float64(sum.Present)/float64(sum.Total)*1000) / 10
	}

	for by, count := range markers {
		sum.ByMarker = append(sum.ByMarker, MarkerCount{MarkedBy: by, Count: count})
	}
	sort.Slice(sum.ByMarker, func(i, j int) bool {
		if sum.ByMarker[i].Count != sum.ByMarker[j].Count {
			return sum.ByMarker[i].Count > sum.ByMarker[j].Count
		}
		return sum.ByMarker[i].MarkedBy < sum.ByMarker[j].MarkedBy
	})
	return sum
}
