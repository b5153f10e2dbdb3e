package l4link

import "math"

// Forbidden marks a cost-matrix entry the solver must never select.
var Forbidden = math.Inf(1)

// HungarianAssign solves the rectangular assignment problem for an n×m
// cost matrix with the Kuhn–Munkres algorithm (Jonker–Volgenant potentials,
// O(dim³)). It returns assign[i] = column for row i, or -1 when row i is
// left unassigned or only forbidden columns were available.
//
// Rows are augmented in index order and columns are scanned in index order
// with strict comparisons, so for equal-cost optima the result is a pure
// function of the matrix.
func HungarianAssign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	result := make([]int, n)
	for i := range result {
		result[i] = -1
	}
	if m == 0 {
		return result
	}

	dim := n
	if m > dim {
		dim = m
	}

	// Forbidden and padding entries cost more than any assignment built
	// from allowed entries alone, so the solver first maximises the number
	// of allowed pairs and then minimises their cost. Keeping the pad close
	// to the real costs keeps the potentials well conditioned.
	allowed := make([][]bool, dim)
	maxCost := 0.0
	for i := 0; i < n; i++ {
		allowed[i] = make([]bool, dim)
		for j := 0; j < m; j++ {
			v := cost[i][j]
			if math.IsInf(v, 0) || math.IsNaN(v) {
				continue
			}
			allowed[i][j] = true
			if math.Abs(v) > maxCost {
				maxCost = math.Abs(v)
			}
		}
	}
	for i := n; i < dim; i++ {
		allowed[i] = make([]bool, dim)
	}
	pad := 1 + 2*float64(dim)*maxCost
	c := make([][]float64, dim)
	for i := range c {
		c[i] = make([]float64, dim)
		for j := range c[i] {
			if allowed[i][j] {
				c[i][j] = cost[i][j]
			} else {
				c[i][j] = pad
			}
		}
	}

	// 1-indexed; column 0 is virtual.
	const inf = math.MaxFloat64 / 2
	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1)   // p[j] = row matched to column j
	way := make([]int, dim+1) // previous column on the augmenting path
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0
		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1
			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			if j1 < 0 {
				break
			}
			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	for j := 1; j <= dim; j++ {
		row, col := p[j]-1, j-1
		if row < 0 || row >= n || col >= m {
			continue
		}
		if !allowed[row][col] {
			continue
		}
		result[row] = col
	}
	return result
}
