package logingest

import (
	"encoding/json"
	"os"
)

// offsetState is the tiny sidecar document tracking where the ingestor left
// off, so a restart resumes instead of re-tailing from the end of the file
// (spec §4.8 "resumes from last position on restart").
type offsetState struct {
	Inode  uint64 `json:"inode"`
	Offset int64  `json:"offset"`
}

func loadOffset(path string) (offsetState, bool) {
	var s offsetState
	b, err := os.ReadFile(path)
	if err != nil {
		return s, false
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, false
	}
	return s, true
}

func saveOffset(path string, s offsetState) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o640); err != nil {
		return
	}
	os.Rename(tmp, path)
}
