package pipeline

// Collector receives report outcomes for observability.
type Collector interface {
	ObserveReport(report Report)
}

// NopCollector discards observations.
type NopCollector struct{}

func (NopCollector) ObserveReport(Report) {}
