package graph

import "slices"

// ComputeType is the raw task type chosen on the canvas
type ComputeType string

const (
	ComputeTypePSI    ComputeType = "PSI"
	ComputeTypePIR    ComputeType = "PIR"
	ComputeTypeMPC    ComputeType = "MPC"
	ComputeTypeConcat ComputeType = "CONCAT"
)

// TechPath selects software cryptography or trusted hardware
type TechPath string

const (
	TechPathSoftware TechPath = "software"
	TechPathTEE      TechPath = "tee"
)

// JoinType is the join semantics of a join field
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinCross JoinType = "CROSS"
)

// SourceType names the kind of node feeding an input provider
type SourceType string

const (
	SourceDataSource SourceType = "dataSource"
	SourceOutputData SourceType = "outputData"
)

// ModelType identifies a computation model implementation
type ModelType string

const (
	ModelExpression ModelType = "expression"
	ModelCodeBinV2  ModelType = "CodeBin-V2"
	ModelCodeBinV31 ModelType = "CodeBin-V3-1"
	ModelCodeBinV32 ModelType = "CodeBin-V3-2"
	ModelSPDZ       ModelType = "SPDZ"
	ModelGroupStat  ModelType = "GROUP_STAT"
)

// BindingType says where a model parameter takes its value from
type BindingType string

const (
	BindingField BindingType = "field"
	BindingFixed BindingType = "fixed"
)

// OutputSource tags where an output column value comes from
type OutputSource string

const (
	OutputFromInput OutputSource = "input"
	OutputFromModel OutputSource = "model"
)

// Field is a column of a data source asset
type Field struct {
	ColumnName  string `json:"columnName" validate:"required"`
	Type        string `json:"type"`
	Length      string `json:"length,omitempty"`
	Comments    string `json:"comments,omitempty"`
	VisibleType int    `json:"visibleType,omitempty"`
}

// FieldMapping is one column a provider contributes to a task
type FieldMapping struct {
	ColumnName  string   `json:"columnName" validate:"required"`
	ColumnAlias string   `json:"columnAlias"`
	ColumnType  string   `json:"columnType" validate:"required"`
	IsJoinField bool     `json:"isJoinField"`
	JoinType    JoinType `json:"joinType,omitempty" validate:"omitempty,join_type"`
}

// Key returns the alias when set, otherwise the column name
func (f FieldMapping) Key() string {
	if f.ColumnAlias != "" {
		return f.ColumnAlias
	}
	return f.ColumnName
}

// EffectiveJoinType defaults unset join fields to INNER
func (f FieldMapping) EffectiveJoinType() JoinType {
	if f.JoinType == "" {
		return JoinInner
	}
	return f.JoinType
}

// InputProvider describes one upstream contributor of a task
type InputProvider struct {
	SourceNodeID  string         `json:"sourceNodeId" validate:"required"`
	SourceType    SourceType     `json:"sourceType" validate:"required,oneof=dataSource outputData"`
	ParticipantID string         `json:"participantId" validate:"required"`
	Dataset       string         `json:"dataset" validate:"required"`
	Fields        []FieldMapping `json:"fields" validate:"required,min=1,dive"`
}

func (p InputProvider) clone() InputProvider {
	p.Fields = slices.Clone(p.Fields)
	return p
}

// ModelParameter binds a model argument to a field or a fixed value
type ModelParameter struct {
	Name        string      `json:"name" validate:"required"`
	BindingType BindingType `json:"bindingType" validate:"required,oneof=field fixed"`
	FieldRef    string      `json:"fieldRef,omitempty" validate:"required_if=BindingType field,omitempty,field_ref"`
	FixedValue  string      `json:"fixedValue,omitempty"`
	Required    bool        `json:"required,omitempty"`
}

// GroupByField is a grouping column of a GROUP_STAT model
type GroupByField struct {
	FieldID    string `json:"fieldId" validate:"required,field_ref"`
	FieldName  string `json:"fieldName"`
	FieldAlias string `json:"fieldAlias,omitempty"`
	FieldType  string `json:"fieldType,omitempty"`
}

// Statistic is one aggregate of a GROUP_STAT model
type Statistic struct {
	ID           string `json:"id"`
	FieldID      string `json:"fieldId" validate:"required"`
	FunctionType string `json:"functionType" validate:"required,oneof=SUM AVG COUNT MAX MIN"`
	ResultAlias  string `json:"resultAlias" validate:"required"`
}

// GroupByConfig configures a GROUP_STAT model
type GroupByConfig struct {
	GroupByFields []GroupByField `json:"groupByFields" validate:"dive"`
	Statistics    []Statistic    `json:"statistics" validate:"required,min=1,dive"`
}

// ComputeModelConfig binds a model or expression to a task
type ComputeModelConfig struct {
	ID            string           `json:"id"`
	Type          ModelType        `json:"type" validate:"required"`
	ParticipantID string           `json:"participantId" validate:"required"`
	Name          string           `json:"name"`
	Version       string           `json:"version,omitempty" validate:"omitempty,semver"`
	ModelNodeID   string           `json:"modelNodeId,omitempty"`
	Expression    string           `json:"expression,omitempty"`
	Parameters    []ModelParameter `json:"parameters,omitempty" validate:"dive"`
	GroupBy       *GroupByConfig   `json:"groupByConfig,omitempty" validate:"-"`
}

func (m ComputeModelConfig) clone() ComputeModelConfig {
	m.Parameters = slices.Clone(m.Parameters)
	if m.GroupBy != nil {
		g := GroupByConfig{
			GroupByFields: slices.Clone(m.GroupBy.GroupByFields),
			Statistics:    slices.Clone(m.GroupBy.Statistics),
		}
		m.GroupBy = &g
	}
	return m
}

// ComputeResourceConfig binds a TEE compute card to a task
type ComputeResourceConfig struct {
	ID             string `json:"id"`
	ParticipantID  string `json:"participantId" validate:"required"`
	GroupID        string `json:"groupId"`
	GroupName      string `json:"groupName"`
	NodeID         string `json:"nodeId"`
	NodeName       string `json:"nodeName,omitempty"`
	NodeAddress    string `json:"nodeAddress,omitempty"`
	CardSerial     string `json:"cardSerial"`
	CardModel      string `json:"cardModel"`
	ResourceNodeID string `json:"resourceNodeId,omitempty"`
}

// OutputField is a column of a task result
type OutputField struct {
	Source      OutputSource `json:"source" validate:"omitempty,oneof=input model"`
	ColumnName  string       `json:"columnName" validate:"required"`
	ColumnAlias string       `json:"columnAlias"`
	ColumnType  string       `json:"columnType"`
}

// OutputDataConfig routes a task result to a participant
type OutputDataConfig struct {
	ID            string        `json:"id"`
	ParticipantID string        `json:"participantId" validate:"required"`
	Dataset       string        `json:"dataset" validate:"required"`
	OutputFields  []OutputField `json:"outputFields" validate:"dive"`
	OutputNodeID  string        `json:"outputNodeId,omitempty"`
	IsEncrypted   bool          `json:"isEncrypted,omitempty"`
}

func (o OutputDataConfig) clone() OutputDataConfig {
	o.OutputFields = slices.Clone(o.OutputFields)
	return o
}

// DataSourceData is the payload of a data source node
type DataSourceData struct {
	Label         string  `json:"label"`
	ParticipantID string  `json:"participantId" validate:"required"`
	EntityName    string  `json:"entityName,omitempty"`
	AssetID       string  `json:"assetId,omitempty"`
	AssetName     string  `json:"assetName"`
	HolderCompany string  `json:"holderCompany,omitempty"`
	DBName        string  `json:"dbName"`
	TableName     string  `json:"tableName" validate:"required"`
	Fields        []Field `json:"fields" validate:"dive"`
}

func (*DataSourceData) Kind() Kind { return KindDataSource }

func (d *DataSourceData) clone() Payload {
	c := *d
	c.Fields = slices.Clone(d.Fields)
	return &c
}

// ComputeTaskData is the payload of a PSI/PIR/MPC task node
type ComputeTaskData struct {
	Label            string                  `json:"label"`
	ComputeType      ComputeType             `json:"computeType" validate:"required"`
	TechPath         TechPath                `json:"techPath,omitempty" validate:"omitempty,tech_path"`
	InputProviders   []InputProvider         `json:"inputProviders"`
	Models           []ComputeModelConfig    `json:"models,omitempty"`
	Expression       string                  `json:"expression,omitempty"`
	ComputeProviders []ComputeResourceConfig `json:"computeProviders,omitempty"`
	Outputs          []OutputDataConfig      `json:"outputs,omitempty"`
}

func (*ComputeTaskData) Kind() Kind { return KindComputeTask }

func (d *ComputeTaskData) clone() Payload {
	c := *d
	c.InputProviders = cloneProviders(d.InputProviders)
	if d.Models != nil {
		c.Models = make([]ComputeModelConfig, len(d.Models))
		for i, m := range d.Models {
			c.Models[i] = m.clone()
		}
	}
	c.ComputeProviders = slices.Clone(d.ComputeProviders)
	c.Outputs = cloneOutputs(d.Outputs)
	return &c
}

// LocalTaskData is the payload of a CONCAT task owned by one participant
type LocalTaskData struct {
	Label          string             `json:"label"`
	ComputeType    ComputeType        `json:"computeType"`
	ParticipantID  string             `json:"participantId"`
	InputProviders []InputProvider    `json:"inputProviders"`
	Outputs        []OutputDataConfig `json:"outputs,omitempty"`
}

func (*LocalTaskData) Kind() Kind { return KindLocalTask }

func (d *LocalTaskData) clone() Payload {
	c := *d
	c.InputProviders = cloneProviders(d.InputProviders)
	c.Outputs = cloneOutputs(d.Outputs)
	return &c
}

// ModelNodeData is the payload of a model node
type ModelNodeData struct {
	Label         string    `json:"label"`
	ModelType     ModelType `json:"modelType"`
	ParentTaskID  string    `json:"parentTaskId" validate:"required"`
	ParticipantID string    `json:"participantId"`
	ModelName     string    `json:"modelName"`
}

func (*ModelNodeData) Kind() Kind { return KindModelNode }

func (d *ModelNodeData) clone() Payload {
	c := *d
	return &c
}

// ComputeResourceData is the payload of a compute resource node
type ComputeResourceData struct {
	Label         string `json:"label"`
	ResourceType  string `json:"resourceType"`
	ParentTaskID  string `json:"parentTaskId" validate:"required"`
	ParticipantID string `json:"participantId"`
	GroupName     string `json:"groupName"`
	CardSerial    string `json:"cardSerial"`
}

func (*ComputeResourceData) Kind() Kind { return KindComputeResource }

func (d *ComputeResourceData) clone() Payload {
	c := *d
	return &c
}

// OutputDataData is the payload of an output node
type OutputDataData struct {
	Label         string        `json:"label"`
	ParentTaskID  string        `json:"parentTaskId" validate:"required"`
	ParticipantID string        `json:"participantId"`
	Dataset       string        `json:"dataset"`
	Fields        []OutputField `json:"fields"`
}

func (*OutputDataData) Kind() Kind { return KindOutputData }

func (d *OutputDataData) clone() Payload {
	c := *d
	c.Fields = slices.Clone(d.Fields)
	return &c
}

// TaskInputs returns the input providers of a task payload
func TaskInputs(p Payload) []InputProvider {
	switch t := p.(type) {
	case *ComputeTaskData:
		return t.InputProviders
	case *LocalTaskData:
		return t.InputProviders
	}
	return nil
}

// TaskOutputs returns the output configs of a task payload
func TaskOutputs(p Payload) []OutputDataConfig {
	switch t := p.(type) {
	case *ComputeTaskData:
		return t.Outputs
	case *LocalTaskData:
		return t.Outputs
	}
	return nil
}

func cloneProviders(in []InputProvider) []InputProvider {
	if in == nil {
		return nil
	}
	out := make([]InputProvider, len(in))
	for i, p := range in {
		out[i] = p.clone()
	}
	return out
}

func cloneOutputs(in []OutputDataConfig) []OutputDataConfig {
	if in == nil {
		return nil
	}
	out := make([]OutputDataConfig, len(in))
	for i, o := range in {
		out[i] = o.clone()
	}
	return out
}
