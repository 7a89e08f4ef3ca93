package service

const (
	// Batch job names used in logs and metrics
	JobClassify   = "classify"
	JobVariations = "variations"
	JobSkill      = "skill"
	JobCalibrate  = "calibrate"

	// Stages a per-user failure can occur in
	StageHistory   = "history"
	StageBaseline  = "baseline"
	StageVariation = "variation"
	StageStreams   = "streams"
	StageWrite     = "write"

	// Pagination defaults when none are configured
	DefaultPageSize = 500
	DefaultWorkers  = 4
)
