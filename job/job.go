package job

// ID is the monotonic handle of a tick-driven job. The first id a
// registry issues is 1.
type ID int64

// Tick describes a single invocation of a job's tick callback. It is
// what middleware sees on every cycle.
type Tick struct {
	JobID    ID
	Name     string
	Progress int64
}
