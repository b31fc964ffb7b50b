package compiler

import (
	"github.com/flowgraph/mpcflow/internal/core/graph"
	"github.com/flowgraph/mpcflow/internal/core/plan"
)

// EntityDirectory resolves participant IDs to display names
type EntityDirectory interface {
	EntityName(participantID string) (string, bool)
}

// StaticDirectory is an EntityDirectory backed by a fixed map
type StaticDirectory map[string]string

// EntityName implements EntityDirectory
func (d StaticDirectory) EntityName(participantID string) (string, bool) {
	name, ok := d[participantID]
	return name, ok && name != ""
}

// canvasDirectory learns entity names from data source payloads
func canvasDirectory(snap *graph.Snapshot) StaticDirectory {
	dir := make(StaticDirectory)
	for _, n := range snap.Nodes() {
		ds, ok := n.Payload.(*graph.DataSourceData)
		if !ok || ds.ParticipantID == "" || ds.EntityName == "" {
			continue
		}
		if _, seen := dir[ds.ParticipantID]; !seen {
			dir[ds.ParticipantID] = ds.EntityName
		}
	}
	return dir
}

// entityNames looks a participant up in each directory in turn and falls
// back to the participant ID
type entityNames []EntityDirectory

func (dirs entityNames) name(participantID string) string {
	for _, d := range dirs {
		if d == nil {
			continue
		}
		if name, ok := d.EntityName(participantID); ok {
			return name
		}
	}
	return participantID
}

func (dirs entityNames) participant(participantID string) plan.Participant {
	return plan.Participant{ParticipantID: participantID, EntityName: dirs.name(participantID)}
}
