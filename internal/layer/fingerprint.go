package layer

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the functional content of a layer list: id, enabled
// flag, groupId, type and config of every layer in storage order. Names
// and collapsed flags are cosmetic and do not contribute, so renaming a
// layer or folding a folder never triggers a pipeline re-run.
func Fingerprint(list []*Layer) uint64 {
	d := xxhash.New()
	for _, l := range list {
		d.WriteString(l.ID)
		d.WriteString("\x00")
		d.WriteString(strconv.FormatBool(l.Enabled))
		d.WriteString("\x00")
		d.WriteString(l.GroupID)
		d.WriteString("\x00")
		d.WriteString(string(l.Type))
		d.WriteString("\x00")
		// RecordConfig has a fixed field order, so its JSON is canonical.
		b, _ := json.Marshal(recordConfig(l.Config))
		d.Write(b)
		d.WriteString("\x1e")
	}
	return d.Sum64()
}
