package compiler

import (
	"github.com/flowgraph/mpcflow/internal/core/graph"
	"github.com/flowgraph/mpcflow/internal/core/plan"
)

// participantIDs lists the participants a payload mentions, in field
// order: providers, models, resources, outputs, then the payload's own
// participant
func participantIDs(p graph.Payload) []string {
	var ids []string
	add := func(id string) {
		if id != "" {
			ids = append(ids, id)
		}
	}
	for _, in := range graph.TaskInputs(p) {
		add(in.ParticipantID)
	}
	if t, ok := p.(*graph.ComputeTaskData); ok {
		for _, m := range t.Models {
			add(m.ParticipantID)
		}
		for _, r := range t.ComputeProviders {
			add(r.ParticipantID)
		}
	}
	for _, o := range graph.TaskOutputs(p) {
		add(o.ParticipantID)
	}
	switch t := p.(type) {
	case *graph.LocalTaskData:
		add(t.ParticipantID)
	case *graph.DataSourceData:
		add(t.ParticipantID)
	case *graph.ModelNodeData:
		add(t.ParticipantID)
	case *graph.ComputeResourceData:
		add(t.ParticipantID)
	case *graph.OutputDataData:
		add(t.ParticipantID)
	}
	return ids
}

// collectParticipants deduplicates the participants of the given nodes by
// ID in first-seen order
func collectParticipants(nodes []*graph.Node, names entityNames) []plan.Participant {
	out := []plan.Participant{}
	seen := make(map[string]bool)
	for _, n := range nodes {
		for _, id := range participantIDs(n.Payload) {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, names.participant(id))
		}
	}
	return out
}

// assetDetails returns one row per data source column
func assetDetails(snap *graph.Snapshot, names entityNames) []plan.AssetDetail {
	out := []plan.AssetDetail{}
	for _, n := range snap.Nodes() {
		ds, ok := n.Payload.(*graph.DataSourceData)
		if !ok {
			continue
		}
		assetID := ds.AssetID
		if assetID == "" {
			assetID = n.ID
		}
		for _, f := range ds.Fields {
			out = append(out, plan.AssetDetail{
				AssetID:       assetID,
				ParticipantID: ds.ParticipantID,
				EntityName:    names.name(ds.ParticipantID),
				AssetName:     ds.AssetName,
				DBName:        ds.DBName,
				TableName:     ds.TableName,
				ColumnName:    f.ColumnName,
				Type:          f.Type,
				Length:        f.Length,
				Comments:      f.Comments,
				HolderCompany: ds.HolderCompany,
				VisibleType:   f.VisibleType,
			})
		}
	}
	return out
}
