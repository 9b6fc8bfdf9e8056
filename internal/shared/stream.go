package shared

import (
	"io"
	"sync"
)

// StreamWriter returns a writer whose bytes are consumed by upload in its own
// goroutine. Close ends the stream and returns the upload's result. If the upload
// fails early, subsequent writes return its error.
func StreamWriter(upload func(r io.Reader) error) io.WriteCloser {
	pr, pw := io.Pipe()
	w := &streamWriter{pw: pw, done: make(chan error, 1)}
	go func() {
		err := upload(pr)
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w
}

type streamWriter struct {
	pw   *io.PipeWriter
	done chan error
	once sync.Once
	err  error
}

func (w *streamWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *streamWriter) Close() error {
	w.once.Do(func() {
		_ = w.pw.Close()
		w.err = <-w.done
	})
	return w.err
}
