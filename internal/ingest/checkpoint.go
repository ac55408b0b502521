package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/pwalhed/photodex/internal/errors"
)

// Checkpoint is a cursor into the deterministic enumeration order.
// Ordinal counts files already handled, so resumption starts at that
// index. The digest and flag bind the cursor to the exact folder set and
// recursion mode that produced it: a checkpoint is meaningless under any
// other enumeration.
type Checkpoint struct {
	Ordinal      int    `json:"ordinal"`
	FolderDigest string `json:"folder_digest"`
	Recursive    bool   `json:"recursive"`
}

// folderDigest fingerprints the resolved, ordered folder list.
func folderDigest(folders []string) string {
	sum := sha256.Sum256([]byte(strings.Join(folders, "\x00")))
	return hex.EncodeToString(sum[:])
}

// validate checks the checkpoint against the current request's enumeration
// parameters. A checkpoint produced under different folders or flags is
// rejected rather than silently restarted, so the caller keeps control
// over whether to start over.
func (c *Checkpoint) validate(digest string, recursive bool, total int) error {
	if c.FolderDigest != digest {
		return errors.NewCheckpointMismatch("checkpoint was produced by a different folder set")
	}
	if c.Recursive != recursive {
		return errors.NewCheckpointMismatch("checkpoint was produced with a different recursive flag")
	}
	if c.Ordinal < 0 || c.Ordinal > total {
		return errors.NewCheckpointMismatch("checkpoint position is outside the current enumeration")
	}
	return nil
}

// EncodeCheckpoint serializes a checkpoint for storage outside the process.
func EncodeCheckpoint(c *Checkpoint) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return data, nil
}

// DecodeCheckpoint parses a checkpoint previously produced by
// EncodeCheckpoint.
func DecodeCheckpoint(data []byte) (*Checkpoint, error) {
	c := &Checkpoint{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.NewInvalidRequest("malformed checkpoint: " + err.Error())
	}
	return c, nil
}
