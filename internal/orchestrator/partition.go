package orchestrator

import "sort"

// Partition assigns each FileWeight to one of numWorkers workers using
// longest-processing-time-first bin packing, per spec.md §4.4: sort
// descending by estimated duration, repeatedly hand the next-heaviest file
// to whichever worker currently carries the smallest load. Returns one
// Assignment per worker, workers with no files assigned included (an empty
// Paths slice), so callers can always spawn exactly numWorkers processes.
func Partition(weights []FileWeight, numWorkers int) []Assignment {
	if numWorkers <= 0 {
		numWorkers = 1
	}

	sorted := make([]FileWeight, len(weights))
	copy(sorted, weights)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seconds > sorted[j].Seconds })

	assignments := make([]Assignment, numWorkers)
	loads := make([]float64, numWorkers)

	for i := range assignments {
		assignments[i].WorkerID = i
	}

	for _, fw := range sorted {
		lightest := 0

		for i := 1; i < numWorkers; i++ {
			if loads[i] < loads[lightest] {
				lightest = i
			}
		}

		assignments[lightest].Paths = append(assignments[lightest].Paths, FileTask{Root: fw.Root, Path: fw.Path})
		loads[lightest] += fw.Seconds
	}

	return assignments
}

// EstimateSeconds returns a file's duration estimate from history, falling
// back to fallbackSeconds for files with no observed duration at all (a
// small constant per spec.md §4.4, typically the cache's running mean).
func EstimateSeconds(history map[string]float64, qualifiedNames []string, fallbackSeconds float64) float64 {
	var total float64

	for _, name := range qualifiedNames {
		if v, ok := history[name]; ok {
			total += v

			continue
		}

		total += fallbackSeconds
	}

	return total
}
