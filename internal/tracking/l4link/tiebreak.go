package l4link

import "math"

// lexicographicAssign returns the optimal assignment (most allowed pairs,
// then least total cost) that is lexicographically smallest when rows are
// read in order and an unassigned row sorts after every column. Among
// equal-cost optima the earliest row therefore gets matched first, and to
// its lowest column.
//
// Rows are fixed one at a time: a lower column is accepted for row i only
// if the remaining rows can still complete an optimum around it.
func lexicographicAssign(cost [][]float64) []int {
	n, m := len(cost), len(cost[0])
	cur := HungarianAssign(cost)
	bestN, bestCost := tally(cost, cur)

	used := make([]bool, m)
	prefixN, prefixCost := 0, 0.0
	for i := 0; i < n; i++ {
		limit := cur[i]
		if limit < 0 {
			limit = m
		}
		for k := 0; k < limit; k++ {
			if used[k] || !allowedCost(cost[i][k]) {
				continue
			}
			if prefixCost+cost[i][k] > bestCost+costTolerance(bestCost) {
				continue
			}
			used[k] = true
			rest := assignRest(cost, i+1, used)
			restN, restCost := tally(cost, rest)
			if prefixN+1+restN == bestN && sameCost(prefixCost+cost[i][k]+restCost, bestCost) {
				cur[i] = k
				copy(cur[i+1:], rest[i+1:])
				break
			}
			used[k] = false
		}
		if cur[i] >= 0 {
			used[cur[i]] = true
			prefixN++
			prefixCost += cost[i][cur[i]]
		}
	}
	return cur
}

// assignRest solves rows from..n-1 against the columns not yet used. The
// result is indexed like cost; rows before from are -1.
func assignRest(cost [][]float64, from int, used []bool) []int {
	out := make([]int, len(cost))
	for i := range out {
		out[i] = -1
	}
	var cols []int
	for k, u := range used {
		if !u {
			cols = append(cols, k)
		}
	}
	if from >= len(cost) || len(cols) == 0 {
		return out
	}

	sub := make([][]float64, len(cost)-from)
	for r := range sub {
		sub[r] = make([]float64, len(cols))
		for c, k := range cols {
			sub[r][c] = cost[from+r][k]
		}
	}
	for r, c := range HungarianAssign(sub) {
		if c >= 0 {
			out[from+r] = cols[c]
		}
	}
	return out
}

func tally(cost [][]float64, assign []int) (int, float64) {
	n, total := 0, 0.0
	for i, k := range assign {
		if k < 0 {
			continue
		}
		n++
		total += cost[i][k]
	}
	return n, total
}

func allowedCost(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Totals summed in different orders may differ in the last bits.
func costTolerance(ref float64) float64 {
	return 1e-9 * math.Max(1, math.Abs(ref))
}

func sameCost(a, b float64) bool {
	return math.Abs(a-b) <= costTolerance(b)
}
