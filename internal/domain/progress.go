package domain

// ProgressKind classifies incremental events emitted by long-running runs.
type ProgressKind string

const (
	ProgressFeed       ProgressKind = "feed"
	ProgressInfo       ProgressKind = "info"
	ProgressUpsert     ProgressKind = "upsert"
	ProgressError      ProgressKind = "error"
	ProgressSummarized ProgressKind = "summarized"
)

// Progress is a single event of a fetch or summarize run.
type Progress struct {
	Kind    ProgressKind
	Message string
	Item    *Item
}

// ProgressSink receives events; nil sinks are allowed everywhere and ignored.
type ProgressSink func(Progress)

// Emit forwards p when the sink is set.
func (s ProgressSink) Emit(p Progress) {
	if s != nil {
		s(p)
	}
}
