package middleware

import "net/http"

// recorder observes what a handler writes: the status, the body size and
// whether the response was flushed as a stream.
type recorder struct {
	http.ResponseWriter
	status   int
	bytes    int64
	flushes  int
	answered bool
}

// record wraps w, reusing an outer recorder so stacked middleware share one.
func record(w http.ResponseWriter) *recorder {
	if rec, ok := w.(*recorder); ok {
		return rec
	}
	return &recorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *recorder) WriteHeader(code int) {
	if !r.answered {
		r.status = code
		r.answered = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.answered = true
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

// Flush keeps SSE streams working through the wrapper.
func (r *recorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		r.flushes++
		f.Flush()
	}
}

func (r *recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *recorder) streamed() bool { return r.flushes > 0 }
