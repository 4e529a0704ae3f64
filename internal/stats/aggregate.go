package stats

import "sort"

// WalkerSummary averages one walker's metrics across repeated runs of the
// same scenario. Means are per step index; runs that ended early (wedged)
// contribute to the indexes they reached.
type WalkerSummary struct {
	Name           string    `json:"name"`
	Kind           string    `json:"kind"`
	Runs           int       `json:"runs"`
	Escapes        int       `json:"escapes"`
	Unsuccessful   int       `json:"unsuccessful"`
	AvgEscapeTick  float64   `json:"avg_escape_tick"`
	AvgYCrossings  float64   `json:"avg_y_crossings"`
	MeanDistOrigin []float64 `json:"mean_dist_origin"`
	MeanAbsX       []float64 `json:"mean_abs_x"`
	MeanAbsY       []float64 `json:"mean_abs_y"`
}

// Summary is the cross-run aggregate for one scenario.
type Summary struct {
	Runs    int             `json:"runs"`
	Walkers []WalkerSummary `json:"walkers"`
}

// Summarize folds per-run walker records into per-name averages.
func Summarize(runs [][]WalkerStats) Summary {
	type acc struct {
		kind         string
		runs         int
		escapes      int
		unsuccessful int
		escTickSum   float64
		crossSum     float64
		distSum      []float64
		absXSum      []float64
		absYSum      []float64
		counts       []int
	}
	byName := make(map[string]*acc)
	var names []string

	for _, run := range runs {
		for _, ws := range run {
			a := byName[ws.Name]
			if a == nil {
				a = &acc{kind: ws.Kind}
				byName[ws.Name] = a
				names = append(names, ws.Name)
			}
			a.runs++
			if ws.Escaped {
				a.escapes++
				a.escTickSum += float64(ws.EscapeTick)
			} else {
				a.unsuccessful++
			}
			a.crossSum += float64(ws.YCrossings)
			for i, step := range ws.Steps {
				if i >= len(a.counts) {
					a.distSum = append(a.distSum, 0)
					a.absXSum = append(a.absXSum, 0)
					a.absYSum = append(a.absYSum, 0)
					a.counts = append(a.counts, 0)
				}
				a.distSum[i] += step.DistOrigin
				a.absXSum[i] += step.AbsX
				a.absYSum[i] += step.AbsY
				a.counts[i]++
			}
		}
	}

	sort.Strings(names)
	summary := Summary{Runs: len(runs)}
	for _, name := range names {
		a := byName[name]
		w := WalkerSummary{
			Name:           name,
			Kind:           a.kind,
			Runs:           a.runs,
			Escapes:        a.escapes,
			Unsuccessful:   a.unsuccessful,
			MeanDistOrigin: make([]float64, len(a.counts)),
			MeanAbsX:       make([]float64, len(a.counts)),
			MeanAbsY:       make([]float64, len(a.counts)),
		}
		if a.escapes > 0 {
			w.AvgEscapeTick = a.escTickSum / float64(a.escapes)
		}
		if a.runs > 0 {
			w.AvgYCrossings = a.crossSum / float64(a.runs)
		}
		for i, n := range a.counts {
			w.MeanDistOrigin[i] = a.distSum[i] / float64(n)
			w.MeanAbsX[i] = a.absXSum[i] / float64(n)
			w.MeanAbsY[i] = a.absYSum[i] / float64(n)
		}
		summary.Walkers = append(summary.Walkers, w)
	}
	return summary
}
