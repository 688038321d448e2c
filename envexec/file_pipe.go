package envexec

import (
	"bytes"
	"io"
	"os"
)

type pipeBuffer struct {
	W      *os.File
	Buffer *bytes.Buffer
	Done   <-chan struct{}
	Limit  Size
}

func newPipe(writer io.Writer, limit Size) (<-chan struct{}, *os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	done := make(chan struct{})
	go func() {
		io.CopyN(writer, r, int64(limit))
		// ensure no blocking / SIGPIPE on the other end
		io.Copy(io.Discard, r)
		r.Close()
		close(done)
	}()
	return done, w, nil
}

// newPipeBuffer collects up to limit + 1 bytes so that truncation is observable
func newPipeBuffer(limit Size) (*pipeBuffer, error) {
	buffer := new(bytes.Buffer)
	done, w, err := newPipe(buffer, limit+1)
	if err != nil {
		return nil, err
	}
	return &pipeBuffer{
		W:      w,
		Buffer: buffer,
		Done:   done,
		Limit:  limit,
	}, nil
}

// Bytes waits for the writer side to close and returns the captured content
func (p *pipeBuffer) Bytes() ([]byte, bool) {
	<-p.Done
	b := p.Buffer.Bytes()
	if int64(len(b)) > int64(p.Limit) {
		return b[:p.Limit], true
	}
	return b, false
}

// newInputPipe returns the read end of a pipe fed with content
func newInputPipe(content []byte) (*os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	go func() {
		// EPIPE when the process exits without reading everything
		w.Write(content)
		w.Close()
	}()
	return r, nil
}
