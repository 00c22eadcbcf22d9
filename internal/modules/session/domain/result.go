package domain

// Lookup is the outcome of a single-session query. A miss is Found == false
// with a nil Err; Err is set only when the query itself failed.
type Lookup struct {
	Session Session
	Found   bool
	Err     error
}

// Listing is the outcome of a multi-session query. Sessions is never nil.
type Listing struct {
	Sessions []Session
	Err      error
}

// ProjectTotal aggregates completed sessions for one project.
type ProjectTotal struct {
	Project      string
	Sessions     int
	TotalSeconds float64
}
