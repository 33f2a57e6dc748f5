package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"linkgraph/internal/data/history"
)

// RenderHistoryTSV renders snapshots one per line, oldest first.
func RenderHistoryTSV(snapshots []history.Snapshot) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("Timestamp\tRunID\tCommit\tTarget\tOutcome\tErrorCode\tPackages\tObjects\tSymbols\tEntryPoints\tBinaries\tCollisions\tUnresolved\tCycles\tDurationMs\n")
	for _, s := range snapshots {
		buf.WriteString(fmt.Sprintf(
			"%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			s.Timestamp.UTC().Format(time.RFC3339),
			s.RunID,
			s.CommitHash,
			s.Target,
			s.Outcome,
			s.ErrorCode,
			s.PackageCount,
			s.ObjectCount,
			s.SymbolCount,
			s.EntryPointCount,
			s.BinaryCount,
			s.CollisionCount,
			s.UnresolvedCount,
			s.CycleCount,
			s.Duration.Milliseconds(),
		))
	}

	return []byte(buf.String()), nil
}

func RenderHistoryJSON(snapshots []history.Snapshot) ([]byte, error) {
	if snapshots == nil {
		snapshots = []history.Snapshot{}
	}
	return json.MarshalIndent(snapshots, "", "  ")
}
