// batch/metrics.go
package batch

// MetricSample is the extracted result for one unit.
type MetricSample struct {
	Experiment      string
	AverageDuration float64
	VehicleCount    int
}

type intOrFloat64 interface {
	int | int64 | float64
}

// Mean is a util function that calculates the arithmetic mean of a data list.
// An empty list has mean 0.0.
func Mean[T intOrFloat64](numbers []T) float64 {
	if len(numbers) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, number := range numbers {
		sum += float64(number)
	}

	return sum / float64(len(numbers))
}

// AverageDuration is the mean trip duration; exactly 0.0 when no trips were recorded.
func AverageDuration(durations []float64) float64 {
	return Mean(durations)
}

// Extract parses the trip-log at path into a MetricSample named id.
// Errors wrap ErrMalformedArtifact when the file exists but cannot be parsed.
func Extract(id, path string) (MetricSample, error) {
	tl, err := ParseTripInfo(path)
	if err != nil {
		return MetricSample{}, err
	}
	return MetricSample{
		Experiment:      id,
		AverageDuration: AverageDuration(tl.Durations),
		VehicleCount:    tl.Count,
	}, nil
}
