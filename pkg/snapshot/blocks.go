package snapshot

import (
	"fmt"

	"github.com/flashlog/nvpersist/pkg/geometry"
	"github.com/flashlog/nvpersist/pkg/memory"
)

// BlockInfo is one decoded slot from a region, independent of any live
// persist.Store — used by diagnostic dumps that want to see every block,
// not just the current tail.
type BlockInfo struct {
	Index   uint32
	Seq     uint32
	Valid   bool
	Payload []byte
}

// DecodeBlocks reads every block in the region described by geom and
// decodes each one against version, reporting CRC/version mismatches as
// Valid=false rather than stopping the scan.
func DecodeBlocks(backend memory.Backend, geom geometry.Geometry, version byte) ([]BlockInfo, error) {
	raw := make([]byte, geom.RecordSize())
	blocks := make([]BlockInfo, geom.Count)

	for i := uint32(0); i < geom.Count; i++ {
		if err := backend.Read(raw, geom.Offset(i), uint32(len(raw))); err != nil {
			return nil, fmt.Errorf("nvpersist: reading block %d: %w", i, err)
		}

		seq, payload, ok := geometry.DecodeBlock(raw, version, geom)
		info := BlockInfo{Index: i, Valid: ok}
		if ok {
			info.Seq = seq
			info.Payload = append([]byte(nil), payload...)
		}
		blocks[i] = info
	}

	return blocks, nil
}
