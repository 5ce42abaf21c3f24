package progress

// Sample is the narrow progress shape reported by download collaborators.
// Total may be zero when the transfer size is not known up front.
type Sample struct {
	Current  int64
	Total    int64
	Filename string
}

// Callback returns a closure that forwards Samples for name into the
// tracker, so downloaders only need to produce Samples and stay unaware of
// the tracker API. When a Sample carries no filename, fallback is used.
func (t *Tracker) Callback(name, fallback string) func(Sample) {
	return func(s Sample) {
		filename := s.Filename
		if filename == "" {
			filename = fallback
		}
		t.Update(name, s.Current, s.Total, filename)
	}
}
