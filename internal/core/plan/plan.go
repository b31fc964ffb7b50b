// Package plan defines the compiled execution plan handed to the
// computation backend. Field names are a stable wire contract.
package plan

// ComputeType is the final task type after applying the technology path
type ComputeType string

const (
	ComputePSI    ComputeType = "PSI"
	ComputePIR    ComputeType = "PIR"
	ComputeMPC    ComputeType = "MPC"
	ComputeTEEPSI ComputeType = "TEE_PSI"
	ComputeTEEPIR ComputeType = "TEE_PIR"
	ComputeTEEMPC ComputeType = "TEE_MPC"
	ComputeConcat ComputeType = "CONCAT"
)

// IsTEE reports whether the task runs on trusted hardware
func (c ComputeType) IsTEE() bool {
	return c == ComputeTEEPSI || c == ComputeTEEPIR || c == ComputeTEEMPC
}

// IsMPC reports whether the task belongs to the MPC family
func (c ComputeType) IsMPC() bool {
	return c == ComputeMPC || c == ComputeTEEMPC
}

// TaskKind is the constant kind of every task entry
const TaskKind = "Task"

// Resource type codes of TEE compute providers, nodes and cards
const (
	GroupTypeTEE = 1
	NodeTypeTEE  = 1
	CardTypeTEE  = 1
)

// ExportJSON is the compiled plan of one workflow
type ExportJSON struct {
	JobID               string        `json:"jobId"`
	Name                string        `json:"name"`
	Description         string        `json:"description"`
	Status              int           `json:"status"`
	ServiceType         int           `json:"serviceType"`
	CreateParticipantID string        `json:"createParticipantId"`
	ModelType           int           `json:"modelType"`
	TLSEnable           bool          `json:"tlsEnable"`
	AssetDetailList     []AssetDetail `json:"assetDetailList"`
	ParticipantList     []Participant `json:"participantList"`
	TaskList            []Task        `json:"taskList"`
}

// Task returns the task with the given ID
func (e *ExportJSON) Task(id string) (*Task, bool) {
	for i := range e.TaskList {
		if e.TaskList[i].TaskID == id {
			return &e.TaskList[i], true
		}
	}
	return nil, false
}

// AssetDetail is one column of one data source, with full provenance
type AssetDetail struct {
	AssetID       string `json:"assetId"`
	ParticipantID string `json:"participantId"`
	EntityName    string `json:"entityName"`
	AssetName     string `json:"assetName"`
	DBName        string `json:"dbName"`
	TableName     string `json:"tableName"`
	ColumnName    string `json:"columnName"`
	Type          string `json:"type"`
	Length        string `json:"length"`
	Comments      string `json:"comments"`
	HolderCompany string `json:"holderCompany"`
	VisibleType   int    `json:"visibleType"`
}

// Participant is an entity taking part in a job or task
type Participant struct {
	ParticipantID string `json:"participantId"`
	EntityName    string `json:"entityName"`
}

// Task is one schedulable unit of the plan
type Task struct {
	Kind                string            `json:"kind"`
	TaskID              string            `json:"taskId"`
	Name                string            `json:"name"`
	TaskSrcIDList       []string          `json:"taskSrcIdList,omitempty"`
	IsFinalTask         bool              `json:"isFinalTask"`
	ServiceType         int               `json:"serviceType"`
	ComputeType         ComputeType       `json:"computeType"`
	Implementation      string            `json:"implementation"`
	JoinConditionList   []JoinCondition   `json:"joinConditionList,omitempty"`
	DataProviderList    []DataProvider    `json:"dataProviderList"`
	ResultConsumerList  []ResultConsumer  `json:"resultConsumerList,omitempty"`
	ParticipantList     []Participant     `json:"participantList"`
	Aggregation         *Aggregation      `json:"aggregation,omitempty"`
	ExpressionList      []Expression      `json:"expressionList,omitempty"`
	ComputeProviderList []ComputeProvider `json:"computeProviderList,omitempty"`
	ModelProviderList   []ModelProvider   `json:"modelProviderList,omitempty"`
}

// JoinCondition joins the datasets of two or more participants
type JoinCondition struct {
	JoinType     string        `json:"joinType"`
	JoinOperands []JoinOperand `json:"joinOperands"`
}

// JoinOperand is one side of a join
type JoinOperand struct {
	ParticipantID  string   `json:"participantId"`
	EntityName     string   `json:"entityName"`
	Dataset        string   `json:"dataset"`
	ColumnNameList []string `json:"columnNameList"`
}

// DataProvider groups the datasets one participant contributes
type DataProvider struct {
	ParticipantID string        `json:"participantId"`
	EntityName    string        `json:"entityName"`
	DatasetList   []DatasetItem `json:"datasetList"`
}

// DatasetItem describes the columns read from or written to a dataset
type DatasetItem struct {
	SingleRow       bool                   `json:"singleRow"`
	Dataset         string                 `json:"dataset"`
	ColumnNameList  []string               `json:"columnNameList"`
	ColumnAliasList []string               `json:"columnAliasList"`
	ColumnTypeList  []string               `json:"columnTypeList,omitempty"`
	CustomParam     map[string]interface{} `json:"customParam"`
}

// ResultConsumer receives task results
type ResultConsumer struct {
	ParticipantID string        `json:"participantId"`
	EntityName    string        `json:"entityName"`
	IsEncrypted   bool          `json:"isEncrypted,omitempty"`
	DatasetList   []DatasetItem `json:"datasetList"`
}

// Expression is an MPC formula evaluated over the joined inputs
type Expression struct {
	ExpressionParamList []interface{} `json:"expressionParamList"`
	Expression          string        `json:"expression"`
}

// ComputeProvider is a resource group of one participant
type ComputeProvider struct {
	GroupID         string        `json:"groupId"`
	ParticipantID   string        `json:"participantId"`
	EntityName      string        `json:"entityName"`
	GroupName       string        `json:"groupName"`
	GroupType       int           `json:"groupType"`
	ComputeNodeList []ComputeNode `json:"computeNodeList"`
}

// ComputeNode is a host inside a resource group
type ComputeNode struct {
	NodeID          string        `json:"nodeId"`
	NodeName        string        `json:"nodeName"`
	NodeAddress     string        `json:"nodeAddress"`
	NodeType        int           `json:"nodeType"`
	ComputeCardList []ComputeCard `json:"computeCardList"`
}

// ComputeCard is a TEE card installed in a compute node
type ComputeCard struct {
	CardSerial  string `json:"cardSerial"`
	CardModel   string `json:"cardModel"`
	CardSpec    string `json:"cardSpec"`
	CardVersion string `json:"cardVersion"`
	CardType    int    `json:"cardType"`
}

// ModelProvider is a model contributed by a participant
type ModelProvider struct {
	ModelID             string           `json:"modelId"`
	ParticipantID       string           `json:"participantId"`
	EntityName          string           `json:"entityName"`
	Name                string           `json:"name"`
	Type                string           `json:"type"`
	Version             string           `json:"version"`
	Description         string           `json:"description"`
	ModelFileName       string           `json:"modelFileName"`
	MethodName          string           `json:"methodName"`
	MethodDescription   string           `json:"methodDescription"`
	ProgrammingLanguage string           `json:"programmingLanguage"`
	OnChainContent      string           `json:"onChainContent"`
	ModelParameterList  []ModelParameter `json:"modelParameterList"`
}

// ModelParameter is one bound model argument
type ModelParameter struct {
	ParticipantID   string   `json:"participantId"`
	EntityName      string   `json:"entityName"`
	Dataset         string   `json:"dataset"`
	ColumnNameList  []string `json:"columnNameList"`
	ColumnAliasList []string `json:"columnAliasList"`
	CustomParam     string   `json:"customParam"`
}

// Aggregation is the GROUP BY part of a statistics task
type Aggregation struct {
	GroupByList  []GroupBy     `json:"groupByList"`
	FunctionList []Function    `json:"functionList"`
	HavingList   []interface{} `json:"havingList"`
}

// GroupBy is one grouping column
type GroupBy struct {
	ParticipantID string `json:"participantId"`
	Dataset       string `json:"dataset"`
	ColumnName    string `json:"columnName"`
	ColumnAlias   string `json:"columnAlias"`
	ColumnType    string `json:"columnType"`
}

// Function is one aggregate over a column
type Function struct {
	FunctionType  string `json:"functionType"`
	ParticipantID string `json:"participantId"`
	Dataset       string `json:"dataset"`
	ColumnName    string `json:"columnName"`
	ResultAlias   string `json:"resultAlias"`
	ResultType    string `json:"resultType"`
}
