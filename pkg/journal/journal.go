// Package journal is an append-only JSON-lines record of exchange events
// (conversions, settlements). It is an audit trail beside the ledger store,
// not a recovery mechanism; the monitor app follows it with tail.
package journal

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nxadm/tail"
)

type Journal struct {
	File     *os.File
	FilePath string

	mu  sync.Mutex
	seq int64
}

func New(filePath string) (j *Journal, err error) {
	j = &Journal{
		FilePath: filePath,
	}
	err = j.Open()
	if err != nil {
		return
	}

	// restore the sequence from the last entry, if any
	s, err := j.ReadLastLine()
	if err != nil {
		return
	}
	if s != "" {
		var e Entry
		err = json.Unmarshal([]byte(s), &e)
		if err != nil {
			return
		}
		j.seq = e.Seq
	}

	return
}

func (j *Journal) Open() (err error) {
	err = os.MkdirAll(filepath.Dir(j.FilePath), 0755)
	if err != nil {
		return
	}

	j.File, err = os.OpenFile(j.FilePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	return
}

func (j *Journal) Close() (err error) {
	if j.File == nil {
		return
	}

	err = j.File.Close()
	if err != nil {
		return
	}

	j.File = nil

	return
}

// Append writes the entry with the next sequence number and a timestamp.
func (j *Journal) Append(e Entry) (err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	e.Seq = j.seq
	e.Ts = time.Now().UnixNano()

	b, err := json.Marshal(e)
	if err != nil {
		j.seq--
		return
	}

	_, err = j.File.WriteString(string(b) + "\n")
	if err != nil {
		j.seq--
		return
	}

	return
}

// ReadLastLine reads the last non-empty line of the file
func (j *Journal) ReadLastLine() (s string, err error) {
	stat, err := j.File.Stat()
	if err != nil {
		return
	}

	// Since we don't know how many bytes the last line has, try to read the
	// last 1024 bytes and extract the last line based on \n
	var b []byte
	var off int64
	size := stat.Size()
	if size < 1024 {
		b = make([]byte, size)
	} else {
		b = make([]byte, 1024)
		off = size - 1024
	}

	_, err = j.File.ReadAt(b, off)
	if err != nil && err != io.EOF {
		return
	}
	err = nil

	txt := strings.Trim(string(b), " \n")
	txts := strings.Split(txt, "\n")

	if len(txts) == 0 {
		return
	}

	s = txts[len(txts)-1]

	return
}

// ReadFirstLine reads the first non-empty line of the file
func (j *Journal) ReadFirstLine() (s string, err error) {
	_, err = j.File.Seek(0, 0)
	if err != nil {
		return
	}

	reader := bufio.NewReader(j.File)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", err
		}

		line = strings.TrimSpace(line)
		if line != "" {
			s = line
			return s, nil
		}
	}

	return "", io.EOF
}

// Tailf continuously monitors new entries and passes them to the channel
func (j *Journal) Tailf(ch chan<- string) (err error) {
	ta, err := tail.TailFile(j.FilePath, tail.Config{
		Follow:        true,
		ReOpen:        true,
		CompleteLines: true,
	})
	if err != nil {
		return
	}

	for line := range ta.Lines {
		if line.Err != nil {
			// a broken line means the follower lost its position, bail out
			// rather than skip and misorder
			err = line.Err
			return
		}

		ch <- line.Text
	}

	return
}
