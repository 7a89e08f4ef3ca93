package analysis

// KMeansResult holds the final assignment of a k-means run.
type KMeansResult struct {
	Labels     []int
	Centroids  []Vector
	Iterations int
}

// KMeans clusters points into k groups with k-means++ seeding drawn from rng,
// then Lloyd iterations until no label changes or maxIter is reached.
// k is reduced to len(points) when fewer points are supplied.
func KMeans(points []Vector, k int, rng RandomSource, maxIter int) KMeansResult {
	n := len(points)
	if k > n {
		k = n
	}
	if k <= 0 {
		return KMeansResult{}
	}

	centroids := seedPlusPlus(points, k, rng)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	iter := 0
	for iter < maxIter {
		iter++
		changed := false
		for i, p := range points {
			best := nearest(p, centroids)
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([]Vector, k)
		counts := make([]int, k)
		for i, p := range points {
			c := labels[i]
			counts[c]++
			for j := range p {
				sums[c][j] += p[j]
			}
		}
		for c := 0; c < k; c++ {
			// an empty cluster keeps its previous centroid
			if counts[c] == 0 {
				continue
			}
			for j := range sums[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}

	return KMeansResult{Labels: labels, Centroids: centroids, Iterations: iter}
}

// seedPlusPlus picks the first centroid uniformly and each following one with
// probability proportional to its squared distance from the closest chosen centroid.
func seedPlusPlus(points []Vector, k int, rng RandomSource) []Vector {
	n := len(points)
	centroids := make([]Vector, 0, k)
	centroids = append(centroids, points[rng.Intn(n)])

	dist := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			dist[i] = squaredDistance(p, centroids[nearest(p, centroids)])
			total += dist[i]
		}

		if total == 0 {
			centroids = append(centroids, points[rng.Intn(n)])
			continue
		}

		target := rng.Float64() * total
		chosen := -1
		var cum float64
		for i, d := range dist {
			if d == 0 {
				continue
			}
			cum += d
			chosen = i
			if cum >= target {
				break
			}
		}
		centroids = append(centroids, points[chosen])
	}
	return centroids
}

// nearest returns the index of the closest centroid; ties go to the lowest index.
func nearest(p Vector, centroids []Vector) int {
	best := 0
	bestDist := squaredDistance(p, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if d := squaredDistance(p, centroids[c]); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
