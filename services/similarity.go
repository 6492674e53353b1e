package services

// Ratio berechnet die Ähnlichkeit zweier Strings als 2*M/T über die
// längsten gemeinsamen Blöcke (M = Anzahl übereinstimmender Runen,
// T = Gesamtlänge beider Strings). Das Maß arbeitet auf Runen, damit
// Hangul-Silben als einzelne Zeichen zählen. Identische Strings ergeben 1.0.
func Ratio(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1.0
	}

	b2j := make(map[rune][]int, len(br))
	for j, r := range br {
		b2j[r] = append(b2j[r], j)
	}

	type span struct{ alo, ahi, blo, bhi int }
	stack := []span{{0, len(ar), 0, len(br)}}
	matches := 0
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		i, j, k := longestMatch(ar, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if k > 0 {
			matches += k
			stack = append(stack,
				span{s.alo, i, s.blo, j},
				span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return 2 * float64(matches) / float64(total)
}

// longestMatch findet den längsten übereinstimmenden Block in den
// angegebenen Fenstern beider Sequenzen.
func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		newj2len := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}
	return besti, bestj, bestsize
}
